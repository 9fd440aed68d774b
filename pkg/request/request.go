// Package request decodes caller parameters into an aggregation request.
//
// The endpoint list arrives base64 encoded. Its decoded form is an array of
// strings in either JSON or single-quoted syntax:
//
//	['https://jsonplaceholder.typicode.com/users','https://example.com/feed.xml']
package request

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/Sternrassler/epoxy/pkg/aggregate"
	"github.com/Sternrassler/epoxy/pkg/client"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Caller-facing error messages.
const (
	MsgIncorrectBase64  = "Incorrect Encoded Base64 URI"
	MsgInvalidErrorType = "Invalid Error Type [fail_any,replace]"
	MsgInvalidTimeout   = "Invalid Timeout"
)

// BadRequestError is a caller-input error. It is raised before any
// endpoint is fetched.
type BadRequestError struct {
	Message string
	Err     error
}

// Error implements the error interface.
func (e *BadRequestError) Error() string {
	return e.Message
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *BadRequestError) Unwrap() error {
	return e.Err
}

// IsBadRequest reports whether err is a caller-input error.
func IsBadRequest(err error) bool {
	var bad *BadRequestError
	return errors.As(err, &bad)
}

// Params are the raw request parameters.
type Params struct {
	// APIs is the base64 encoded endpoint array.
	APIs string `validate:"required"`

	// Errors is the failure policy token.
	Errors string `validate:"required,oneof=fail_any replace"`

	// Timeout per endpoint call in milliseconds (nil = default). Bounded
	// by MaxTimeoutMillis so the duration cannot overflow.
	Timeout *int `validate:"omitempty,min=1,max=3600000"`
}

// MaxTimeoutMillis is the largest accepted per-call timeout (one hour).
const MaxTimeoutMillis = 3600000

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode validates params and builds the aggregation request. A
// defaultTimeout <= 0 falls back to aggregate.DefaultTimeout.
func Decode(params Params, defaultTimeout time.Duration) (aggregate.Request, error) {
	if err := validate.Struct(params); err != nil {
		return aggregate.Request{}, translate(err)
	}

	endpoints, err := DecodeEndpoints(params.APIs)
	if err != nil {
		return aggregate.Request{}, err
	}

	policy, err := client.ParsePolicy(params.Errors)
	if err != nil {
		return aggregate.Request{}, &BadRequestError{Message: MsgInvalidErrorType, Err: err}
	}

	timeout := defaultTimeout
	if timeout <= 0 {
		timeout = aggregate.DefaultTimeout
	}
	if params.Timeout != nil {
		timeout = time.Duration(*params.Timeout) * time.Millisecond
	}

	return aggregate.Request{
		Endpoints: endpoints,
		Policy:    policy,
		Timeout:   timeout,
	}, nil
}

// DecodeEndpoints decodes a base64 encoded endpoint array. Standard and
// URL-safe alphabets are accepted, with or without padding.
func DecodeEndpoints(encoded string) ([]string, error) {
	raw, err := decodeBase64(strings.TrimSpace(encoded))
	if err != nil {
		log.Debug().Err(err).Msg("Endpoint list is not valid base64")
		return nil, &BadRequestError{Message: MsgIncorrectBase64, Err: err}
	}

	// YAML flow sequences accept both JSON arrays and single-quoted items.
	var endpoints []string
	if err := yaml.Unmarshal(raw, &endpoints); err != nil {
		log.Debug().Err(err).Msg("Endpoint list is not a string array")
		return nil, &BadRequestError{Message: MsgIncorrectBase64, Err: err}
	}
	if endpoints == nil {
		return nil, &BadRequestError{Message: MsgIncorrectBase64, Err: errors.New("empty endpoint list")}
	}

	return endpoints, nil
}

func decodeBase64(s string) ([]byte, error) {
	var firstErr error
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
	} {
		raw, err := enc.DecodeString(s)
		if err == nil {
			return raw, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

// translate maps validation failures onto caller-facing messages.
func translate(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &BadRequestError{Message: err.Error(), Err: err}
	}

	switch fieldErrs[0].StructField() {
	case "APIs":
		return &BadRequestError{Message: MsgIncorrectBase64, Err: err}
	case "Errors":
		return &BadRequestError{Message: MsgInvalidErrorType, Err: err}
	default:
		return &BadRequestError{Message: MsgInvalidTimeout, Err: err}
	}
}
