package storage

import (
	"encoding/json"
	"errors"
	"log"
	"mime"
	"net/http"
	"path"
	"strings"

	"efficio-backend/internal/auth"
)

// UploadHandler stores the multipart "files" of the request and returns
// their names and public URLs. Nothing is kept when any file fails.
func UploadHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, "invalid multipart form", http.StatusBadRequest)
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		files := r.MultipartForm.File["files"]
		if len(files) == 0 {
			http.Error(w, "no files", http.StatusBadRequest)
			return
		}
		for _, fh := range files {
			if err := CheckName(fh.Filename); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}

		out := make([]Object, 0, len(files))
		rollback := func() {
			for _, o := range out {
				if err := store.Remove(o.Key); err != nil {
					log.Printf("[WARN] removing %s after failed upload: %v", o.Key, err)
				}
			}
		}

		for _, fh := range files {
			f, err := fh.Open()
			if err != nil {
				rollback()
				http.Error(w, "cannot read "+fh.Filename, http.StatusBadRequest)
				return
			}
			obj, err := store.Put(uid, fh.Filename, f)
			_ = f.Close()
			if err != nil {
				rollback()
				switch {
				case errors.Is(err, ErrUnsupportedType), errors.Is(err, ErrTooLarge):
					http.Error(w, err.Error(), http.StatusBadRequest)
				default:
					log.Printf("[ERROR] upload user_id=%s: %v", uid, err)
					http.Error(w, "upload failed", http.StatusInternalServerError)
				}
				return
			}
			out = append(out, obj)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(out)
	}
}

// ServeHandler serves stored objects by key from the "key" path value.
func ServeHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.PathValue("key")

		f, err := store.Open(key)
		switch {
		case errors.Is(err, ErrInvalidKey), errors.Is(err, ErrNotFound):
			http.Error(w, "not found", http.StatusNotFound)
			return
		case err != nil:
			log.Printf("[ERROR] open %s: %v", key, err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil || info.IsDir() {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		// uploaded content must not execute on this origin
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Content-Security-Policy", "sandbox")
		if strings.EqualFold(path.Ext(info.Name()), ".svg") {
			w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": info.Name()}))
		}
		http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	}
}
