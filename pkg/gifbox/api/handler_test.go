package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/gifbox/api/pkg/gifbox"
	"github.com/gifbox/api/pkg/gifbox/repo/memory"
	searchmemory "github.com/gifbox/api/pkg/gifbox/search/memory"
	memorystorage "github.com/gifbox/api/pkg/gifbox/storage/memory"
	viewsmemory "github.com/gifbox/api/pkg/gifbox/views/memory"
	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

type testEnv struct {
	server *httptest.Server
	repo   *memory.Repository
	store  *memorystorage.Backend
	tokens *jwtauth.JWTAuth
	svc    gifbox.Service
	user   *gifbox.User
}

func fakeTranscoder(ctx context.Context, data []byte) ([]byte, error) {
	return append([]byte("RIFF-webp"), data...), nil
}

func setupHandlerTest(t *testing.T, transcoder gifbox.TranscoderFunc, opts ...HandlerOption) *testEnv {
	t.Helper()
	if transcoder == nil {
		transcoder = fakeTranscoder
	}

	env := &testEnv{
		repo:   memory.New(),
		store:  memorystorage.New(),
		tokens: jwtauth.New("HS256", testSecret, nil),
		user: &gifbox.User{
			ID:          uuid.New(),
			Username:    gofakeit.Username(),
			DisplayName: gofakeit.Name(),
			Email:       gofakeit.Email(),
		},
	}
	env.repo.PutUser(env.user)

	svc, err := gifbox.New(
		gifbox.WithRepository(env.repo),
		gifbox.WithBlobStore(env.store),
		gifbox.WithTranscoder(transcoder),
		gifbox.WithSearchIndex(searchmemory.New()),
		gifbox.WithViewCounter(viewsmemory.New()),
	)
	require.NoError(t, err)
	env.svc = svc

	env.server = httptest.NewServer(NewHandler(svc, env.tokens, opts...).Routes())
	t.Cleanup(env.server.Close)
	return env
}

func (e *testEnv) token(t *testing.T, sub string) string {
	t.Helper()
	_, token, err := e.tokens.Encode(map[string]interface{}{"sub": sub})
	require.NoError(t, err)
	return token
}

func testGIF(t *testing.T) []byte {
	t.Helper()
	img := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{color.Black, color.White})
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, img, nil))
	return buf.Bytes()
}

type upload struct {
	title string
	tags  []string
	file  []byte
}

func multipartBody(t *testing.T, u upload) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if u.title != "" {
		require.NoError(t, mw.WriteField("title", u.title))
	}
	for _, tag := range u.tags {
		require.NoError(t, mw.WriteField("tags[]", tag))
	}
	if u.file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="upload.gif"`)
		h.Set("Content-Type", "image/gif")
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(u.file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (e *testEnv) do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func (e *testEnv) createPost(t *testing.T, token string, u upload) (*http.Response, []byte) {
	t.Helper()
	body, contentType := multipartBody(t, u)
	req, err := http.NewRequest(http.MethodPost, e.server.URL+"/post/new", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.do(t, req)
}

func errorMessage(t *testing.T, body []byte) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(body, &resp), string(body))
	return resp.Error
}

func TestHandler_Status(t *testing.T) {
	env := setupHandlerTest(t, nil)

	req, _ := http.NewRequest(http.MethodGet, env.server.URL+"/", nil)
	resp, body := env.do(t, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestHandler_CreateAndServe(t *testing.T) {
	env := setupHandlerTest(t, nil)
	token := env.token(t, env.user.ID.String())

	resp, body := env.createPost(t, token, upload{
		title: "Hello World",
		tags:  []string{"fun", "meme", "test"},
		file:  testGIF(t),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var view gifbox.PostView
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, "hello-world", view.Slug)
	assert.Equal(t, []string{"fun", "meme", "test"}, view.Tags)
	require.NotNil(t, view.Author)
	assert.Equal(t, env.user.ID, view.Author.ID)
	assert.Equal(t, "image/webp", view.File.MimeType)
	assert.Len(t, view.File.ContentHash, 128)
	assert.Zero(t, view.Views)
	assert.NotContains(t, string(body), env.user.Email)

	var raw struct {
		File map[string]any `json:"file"`
	}
	require.NoError(t, json.Unmarshal(body, &raw))
	assert.Equal(t, view.File.ContentHash, raw.File["contentHash"])
	assert.NotContains(t, raw.File, "hash")

	fileURL := env.server.URL + "/file/posts/" + view.File.FileName

	t.Run("file is served with caching headers", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, fileURL, nil)
		resp, data := env.do(t, req)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "image/webp", resp.Header.Get("Content-Type"))
		assert.Equal(t, view.File.ContentHash, resp.Header.Get("ETag"))
		assert.Equal(t, "public, max-age=31536000", resp.Header.Get("Cache-Control"))
		assert.Equal(t, `inline; filename="`+view.File.FileName+`"`, resp.Header.Get("Content-Disposition"))
		assert.NotEmpty(t, resp.Header.Get("Expires"))
		assert.NotEmpty(t, resp.Header.Get("Last-Modified"))
		assert.Equal(t, view.File.Size, int64(len(data)))
		assert.Equal(t, view.File.ContentHash, gifbox.Digest(data))
	})

	t.Run("matching If-None-Match is not modified", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, fileURL, nil)
		req.Header.Set("If-None-Match", view.File.ContentHash)
		resp, data := env.do(t, req)
		assert.Equal(t, http.StatusNotModified, resp.StatusCode)
		assert.Empty(t, data)
	})

	t.Run("stale If-None-Match gets the body", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, fileURL, nil)
		req.Header.Set("If-None-Match", "something-else")
		resp, _ := env.do(t, req)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("get post counts views", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, env.server.URL+"/post/"+view.ID.String(), nil)
		resp, body := env.do(t, req)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got gifbox.PostView
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, int64(1), got.Views)
	})

	t.Run("search finds the post", func(t *testing.T) {
		require.NoError(t, env.svc.Flush(context.Background()))

		req, _ := http.NewRequest(http.MethodPost, env.server.URL+"/post/search", bytes.NewBufferString(`{"query":"hello"}`))
		req.Header.Set("Content-Type", "application/json")
		resp, body := env.do(t, req)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		var page gifbox.SearchPage
		require.NoError(t, json.Unmarshal(body, &page))
		require.Len(t, page.Hits, 1)
		assert.Equal(t, view.ID, page.Hits[0].ID)
		assert.Equal(t, gifbox.DefaultSearchLimit, page.Limit)
	})
}

func TestHandler_CreatePost_Errors(t *testing.T) {
	tests := []struct {
		name       string
		transcoder gifbox.TranscoderFunc
		opts       []HandlerOption
		upload     func(t *testing.T) upload
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing file",
			upload:     func(t *testing.T) upload { return upload{title: "No file"} },
			wantStatus: http.StatusBadRequest,
			wantError:  "No file provided",
		},
		{
			name:       "not an image",
			upload:     func(t *testing.T) upload { return upload{title: "Text", file: []byte("plain text content")} },
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid file type",
		},
		{
			name:       "missing title",
			upload:     func(t *testing.T) upload { return upload{file: testGIF(t)} },
			wantStatus: http.StatusBadRequest,
			wantError:  "title is required",
		},
		{
			name: "transcoder rejects input",
			transcoder: func(ctx context.Context, data []byte) ([]byte, error) {
				return nil, gifbox.ErrTranscodeFailure
			},
			upload:     func(t *testing.T) upload { return upload{title: "Broken", file: testGIF(t)} },
			wantStatus: http.StatusBadRequest,
			wantError:  "Not a valid source file",
		},
		{
			name: "transcoder at capacity",
			transcoder: func(ctx context.Context, data []byte) ([]byte, error) {
				return nil, gifbox.ErrTranscoderBusy
			},
			upload:     func(t *testing.T) upload { return upload{title: "Busy", file: testGIF(t)} },
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name: "transcoder runs out of time",
			transcoder: func(ctx context.Context, data []byte) ([]byte, error) {
				return nil, fmt.Errorf("%w: killed after 2m0s", gifbox.ErrTranscodeTimeout)
			},
			upload:     func(t *testing.T) upload { return upload{title: "Slow", file: testGIF(t)} },
			wantStatus: http.StatusServiceUnavailable,
			wantError:  "Conversion took too long, try again later",
		},
		{
			name: "unexpected failure",
			transcoder: func(ctx context.Context, data []byte) ([]byte, error) {
				return nil, errors.New("disk full at /var/tmp")
			},
			upload:     func(t *testing.T) upload { return upload{title: "Oops", file: testGIF(t)} },
			wantStatus: http.StatusInternalServerError,
			wantError:  "Internal Server Error",
		},
		{
			name:       "body over the ceiling",
			opts:       []HandlerOption{WithMaxUploadBytes(512)},
			upload:     func(t *testing.T) upload { return upload{title: "Big", file: bytes.Repeat([]byte("x"), 4096)} },
			wantStatus: http.StatusRequestEntityTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupHandlerTest(t, tt.transcoder, tt.opts...)

			resp, body := env.createPost(t, env.token(t, env.user.ID.String()), tt.upload(t))
			assert.Equal(t, tt.wantStatus, resp.StatusCode, string(body))
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, errorMessage(t, body))
			}
			assert.Zero(t, env.store.Len())
		})
	}
}

func TestHandler_CreatePost_RequiresSession(t *testing.T) {
	env := setupHandlerTest(t, nil)
	other := jwtauth.New("HS256", []byte("another-secret"), nil)
	_, forged, err := other.Encode(map[string]interface{}{"sub": env.user.ID.String()})
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"no token", ""},
		{"wrong signing key", forged},
		{"subject is not a user id", env.token(t, "admin")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := env.createPost(t, tt.token, upload{title: "Hi", file: testGIF(t)})
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestHandler_DeletePost(t *testing.T) {
	env := setupHandlerTest(t, nil)
	ownerToken := env.token(t, env.user.ID.String())

	_, body := env.createPost(t, ownerToken, upload{title: "Delete me", file: testGIF(t)})
	var view gifbox.PostView
	require.NoError(t, json.Unmarshal(body, &view))

	del := func(id, token string) (*http.Response, []byte) {
		req, _ := http.NewRequest(http.MethodDelete, env.server.URL+"/post/"+id, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return env.do(t, req)
	}

	resp, _ := del(view.ID.String(), "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = del(view.ID.String(), env.token(t, uuid.NewString()))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "You are not the author of this post", errorMessage(t, body))

	resp, body = del(view.ID.String(), ownerToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"success":true}`, string(body))

	resp, body = del(view.ID.String(), ownerToken)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Post not found", errorMessage(t, body))

	req, _ := http.NewRequest(http.MethodGet, env.server.URL+"/file/posts/"+view.File.FileName, nil)
	resp, _ = env.do(t, req)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandler_Reads_NotFound(t *testing.T) {
	env := setupHandlerTest(t, nil)

	paths := []string{
		"/post/" + uuid.NewString(),
		"/post/not-a-uuid",
		"/file/posts/" + gifbox.NewStorageName(),
		"/file/avatars/" + gifbox.NewStorageName(),
	}
	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, env.server.URL+path, nil)
			resp, _ := env.do(t, req)
			assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		})
	}
}

func TestHandler_ServeAvatar(t *testing.T) {
	env := setupHandlerTest(t, nil)
	ctx := context.Background()

	avatar := gifbox.FileInformation{
		ID:          uuid.New(),
		FileName:    gifbox.NewStorageName(),
		Bucket:      gifbox.BucketAvatars,
		MimeType:    gifbox.CanonicalMimeType,
		ContentHash: gifbox.Digest([]byte("avatar")),
	}
	user := *env.user
	user.Avatar = &avatar
	env.repo.PutUser(&user)
	require.NoError(t, env.store.Put(ctx, gifbox.BucketAvatars, avatar.FileName, []byte("avatar"), avatar.MimeType))

	req, _ := http.NewRequest(http.MethodGet, env.server.URL+"/file/avatars/"+avatar.FileName, nil)
	resp, data := env.do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "avatar", string(data))
	assert.Equal(t, avatar.ContentHash, resp.Header.Get("ETag"))
}

func TestHandler_SearchPosts_Validation(t *testing.T) {
	env := setupHandlerTest(t, nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty body uses defaults", ``, http.StatusOK},
		{"limit over maximum", `{"limit":1000}`, http.StatusBadRequest},
		{"negative skip", `{"skip":-1}`, http.StatusBadRequest},
		{"malformed json", `{"query":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodPost, env.server.URL+"/post/search", bytes.NewBufferString(tt.body))
			resp, body := env.do(t, req)
			assert.Equal(t, tt.want, resp.StatusCode, string(body))
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		op     string
		err    error
		status int
	}{
		{"create", &gifbox.ValidationError{Field: "title", Message: "title is required"}, http.StatusBadRequest},
		{"create", gifbox.ErrUserNotFound, http.StatusUnauthorized},
		{"delete", &gifbox.PostError{Op: "delete", Err: gifbox.ErrPostNotFound}, http.StatusBadRequest},
		{"get", &gifbox.PostError{Op: "get", Err: gifbox.ErrPostNotFound}, http.StatusNotFound},
		{"file", gifbox.ErrFileNotFound, http.StatusNotFound},
		{"create", gifbox.ErrTranscodeFailure, http.StatusBadRequest},
		{"create", gifbox.ErrTranscodeTimeout, http.StatusServiceUnavailable},
		{"create", &gifbox.StorageError{Backend: "s3", Op: "put", Err: errors.New("timeout")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := classify(tt.op, tt.err)
		assert.Equal(t, tt.status, status, "%s: %v", tt.op, tt.err)
	}
}
