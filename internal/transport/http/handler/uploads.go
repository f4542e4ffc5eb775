package handler

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/leafbook/internal/application/media"
)

const maxUploadMemory = 32 << 20

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// formUploads opens every file posted under field. The returned func closes them.
func formUploads(r *http.Request, field string) ([]media.Upload, func(), error) {
	var files []multipart.File
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}
	if r.MultipartForm == nil {
		return nil, closeAll, nil
	}
	var ups []media.Upload
	for _, fh := range r.MultipartForm.File[field] {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		files = append(files, f)
		ups = append(ups, media.Upload{
			Reader:      f,
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
		})
	}
	return ups, closeAll, nil
}

// parseMultipart answers 400 when the body is not a readable multipart form.
func parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid multipart form")
		return false
	}
	return true
}

func formBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.FormValue(key))
	return b || r.FormValue(key) == "on"
}
