package errx

import (
	"errors"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// WrapStorage maps object storage errors to AppError. Missing objects and
// authorization failures get distinct statuses so callers can tell a
// configuration problem from a transient fault.
func WrapStorage(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return New(err, http.StatusNotFound, StorageNotFoundMessage)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return New(err, gerr.Code, CredentialsErrorMessage)
		case http.StatusNotFound:
			return New(err, http.StatusNotFound, StorageNotFoundMessage)
		}
	}
	return New(err, http.StatusBadGateway, StorageErrorMessage)
}
