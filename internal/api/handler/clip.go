package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/priyadarshi7/ZenLearn/internal/api/response"
	"github.com/priyadarshi7/ZenLearn/internal/audio"
	"github.com/priyadarshi7/ZenLearn/internal/tracker"
)

// multipartMemory is how much of a multipart body is held in memory before spilling to disk.
const multipartMemory = 8 << 20

// clipForm holds the fields shared by POST /upload and POST /process.
type clipForm struct {
	Filename string `validate:"required"`
	Voice    string `validate:"omitempty,alphanum,max=64"`
}

var validate = validator.New()

// readClip parses the multipart body into tracker work. When ok is false the
// error response has already been written. Callers must run cleanup.
func readClip(w http.ResponseWriter, r *http.Request, maxBytes int64) (work tracker.Work, cleanup func(), ok bool) {
	noop := func() {}

	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			response.Error(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
				"Upload exceeds the maximum allowed size", map[string]int64{"max_bytes": maxBytes})
			return work, noop, false
		}
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Expected a multipart form with a file field", nil)
		return work, noop, false
	}
	removeForm := func() { r.MultipartForm.RemoveAll() }

	file, header, err := r.FormFile("file")
	if err != nil {
		removeForm()
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Missing file", nil)
		return work, noop, false
	}
	cleanup = func() {
		file.Close()
		removeForm()
	}

	if !audio.HasAcceptedExtension(header.Filename) {
		cleanup()
		response.Error(w, http.StatusBadRequest, "UNSUPPORTED_FORMAT", "Only MP3 files are supported", nil)
		return work, noop, false
	}

	form := clipForm{
		Filename: header.Filename,
		Voice:    strings.TrimSpace(r.FormValue("voice")),
	}
	if err := validate.Struct(form); err != nil {
		cleanup()
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid form fields", validationDetails(err))
		return work, noop, false
	}

	return tracker.Work{Filename: form.Filename, Voice: form.Voice, Audio: file}, cleanup, true
}

// validationDetails maps each failing field to the rule it broke.
func validationDetails(err error) map[string]string {
	details := map[string]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			details[strings.ToLower(fe.Field())] = fe.Tag()
		}
	}
	return details
}
