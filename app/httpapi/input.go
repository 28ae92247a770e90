package httpapi

import (
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/AntonStoeckl/library-lending-go/app/blobstore"
	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	multipartMemoryBytes = 1 << 20
	formOverheadBytes    = 1 << 20
	contentTypeMultipart = "multipart/form-data"
	contentTypeForm      = "application/x-www-form-urlencoded"
)

var errBodyTooLarge = errors.New("request body too large")

// input holds the submitted fields of a JSON, urlencoded or multipart request.
// JSON values keep their decoded type, form values are strings.
type input struct {
	values map[string]any
	image  *multipart.FileHeader
}

// readInput parses the request body. Unparseable bodies yield an empty input, so validation reports
// the missing fields. The returned cleanup removes temporary files of multipart uploads.
func (s *Server) readInput(w http.ResponseWriter, r *http.Request) (input, func(), error) {
	in := input{values: make(map[string]any)}
	noop := func() {}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+formOverheadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case contentTypeJSON:
		body, err := io.ReadAll(r.Body)
		if isTooLarge(err) {
			return input{}, noop, errBodyTooLarge
		}

		if err != nil || len(body) == 0 {
			break
		}

		if err = json.Unmarshal(body, &in.values); err != nil || in.values == nil {
			in.values = make(map[string]any)
		}

	case contentTypeMultipart:
		err := r.ParseMultipartForm(multipartMemoryBytes)
		cleanup := func() {
			if r.MultipartForm == nil {
				return
			}

			if removeErr := r.MultipartForm.RemoveAll(); removeErr != nil {
				s.logError(r.Context(), logMsgMultipartCleanup, logAttrError, removeErr.Error())
			}
		}

		if isTooLarge(err) {
			cleanup()
			return input{}, noop, errBodyTooLarge
		}

		if err == nil {
			for field, values := range r.MultipartForm.Value {
				if len(values) > 0 {
					in.values[field] = values[0]
				}
			}

			if files := r.MultipartForm.File[lending.FieldImage]; len(files) > 0 {
				in.image = files[0]
			}
		}

		return in, cleanup, nil

	case contentTypeForm:
		err := r.ParseForm()
		if isTooLarge(err) {
			return input{}, noop, errBodyTooLarge
		}

		for field, values := range r.PostForm {
			if len(values) > 0 {
				in.values[field] = values[0]
			}
		}
	}

	return in, noop, nil
}

func isTooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr)
}

func (in input) has(field string) bool {
	value, ok := in.values[field]
	return ok && value != nil
}

// text returns the field as string. It reports false if the field holds a non-text JSON value.
func (in input) text(field string) (string, bool) {
	value, ok := in.values[field]
	if !ok || value == nil {
		return "", true
	}

	str, isText := value.(string)

	return str, isText
}

// integer returns the field as int. Numeric strings are accepted like form values.
func (in input) integer(field string) (int, bool) {
	switch value := in.values[field].(type) {
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		return parsed, err == nil
	case float64:
		if value != math.Trunc(value) || value > math.MaxInt32 || value < math.MinInt32 {
			return 0, false
		}

		return int(value), true
	default:
		return 0, false
	}
}

func (in input) isBlank(field string) bool {
	if !in.has(field) {
		return true
	}

	str, isText := in.values[field].(string)

	return isText && strings.TrimSpace(str) == ""
}

// textField validates a text field with the string rule and returns its value.
func (in input) textField(verr *lending.ValidationError, field string) string {
	value, isText := in.text(field)
	if !isText {
		verr.Add(field, lending.StringMessage(field))
	}

	return value
}

// yearField validates the publication year with the integer rule; bounds are checked by the lending package.
func (in input) yearField(verr *lending.ValidationError) (int, bool) {
	if in.isBlank(lending.FieldPublicationYear) {
		verr.Add(lending.FieldPublicationYear, lending.RequiredMessage(lending.FieldPublicationYear))
		return 0, false
	}

	year, ok := in.integer(lending.FieldPublicationYear)
	if !ok {
		verr.Add(lending.FieldPublicationYear, lending.IntegerMessage(lending.FieldPublicationYear))
		return 0, false
	}

	return year, true
}

// checkImage validates type and size of an uploaded image.
func (s *Server) checkImage(verr *lending.ValidationError, image *multipart.FileHeader) {
	if _, err := blobstore.ExtensionOf(image.Filename); err != nil {
		verr.Add(lending.FieldImage, imageTypeMessage())
		return
	}

	if image.Size > s.maxUploadBytes {
		verr.Add(lending.FieldImage, s.imageSizeMessage())
	}
}

func imageTypeMessage() string {
	return fmt.Sprintf("The %s field must be a file of type: %s.",
		lending.FieldImage, strings.Join(blobstore.AllowedExtensions, ", "))
}

func (s *Server) imageSizeMessage() string {
	return fmt.Sprintf("The %s field must not be greater than %d kilobytes.", lending.FieldImage, s.maxUploadBytes/1024)
}
