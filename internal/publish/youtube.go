// Package publish uploads finished videos to a caller's YouTube channel.
package publish

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/Msr7799/veo-backend/internal/domain"
	"github.com/Msr7799/veo-backend/internal/infra"
)

const (
	// UploadScope grants video uploads to the connected channel.
	UploadScope = "https://www.googleapis.com/auth/youtube.upload"

	defaultUploadURL = "https://www.googleapis.com/upload/youtube/v3/videos?uploadType=multipart&part=snippet,status"
	stateTTL         = 10 * time.Minute
)

// Options configures a YouTube publisher.
type Options struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	TokenTTL     time.Duration
	Store        domain.ObjectStore
	// Endpoint and UploadURL default to Google's production endpoints.
	Endpoint   oauth2.Endpoint
	UploadURL  string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Metadata describes the uploaded video.
type Metadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Privacy     string   `json:"privacy,omitempty"`
}

// YouTube runs the OAuth consent flow and keeps each identity's token in
// memory until it expires.
type YouTube struct {
	oauth      *oauth2.Config
	tokens     *ttlcache.Cache[string, *oauth2.Token]
	states     *ttlcache.Cache[string, string]
	store      domain.ObjectStore
	uploadURL  string
	httpClient *http.Client
	logger     *infra.Logger
}

// NewYouTube returns nil when no OAuth client is configured.
func NewYouTube(opts Options) *YouTube {
	if opts.ClientID == "" || opts.ClientSecret == "" {
		return nil
	}
	endpoint := opts.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}
	uploadURL := opts.UploadURL
	if uploadURL == "" {
		uploadURL = defaultUploadURL
	}
	ttl := opts.TokenTTL
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	logger := opts.Logger
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &YouTube{
		oauth: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{UploadScope},
		},
		tokens:     ttlcache.New(ttlcache.WithTTL[string, *oauth2.Token](ttl)),
		states:     ttlcache.New(ttlcache.WithTTL[string, string](stateTTL)),
		store:      opts.Store,
		uploadURL:  uploadURL,
		httpClient: client,
		logger:     logger,
	}
}

// Start runs the background eviction of expired tokens and states until
// Stop is called.
func (y *YouTube) Start() {
	go y.tokens.Start()
	go y.states.Start()
}

// Stop halts background eviction.
func (y *YouTube) Stop() {
	y.tokens.Stop()
	y.states.Stop()
}

// AuthURL returns the consent URL for ownerID.
func (y *YouTube) AuthURL(ownerID string) string {
	state := uuid.NewString()
	y.states.Set(state, ownerID, ttlcache.DefaultTTL)
	return y.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange completes the consent flow started by AuthURL and returns the
// identity the token now belongs to.
func (y *YouTube) Exchange(ctx context.Context, state, code string) (string, error) {
	item := y.states.Get(state)
	if item == nil {
		return "", domain.Validationf("unknown or expired state")
	}
	y.states.Delete(state)
	if strings.TrimSpace(code) == "" {
		return "", domain.Validationf("code is required")
	}
	tok, err := y.oauth.Exchange(y.clientContext(ctx), code)
	if err != nil {
		return "", errors.Wrap(err, "publish: exchange code")
	}
	owner := item.Value()
	y.tokens.Set(owner, tok, ttlcache.DefaultTTL)
	y.logger.Info().Str("user_id", owner).Msg("publish: youtube connected")
	return owner, nil
}

// Connected reports whether ownerID holds a live token.
func (y *YouTube) Connected(ownerID string) bool {
	return y.tokens.Get(ownerID) != nil
}

// Disconnect forgets ownerID's token.
func (y *YouTube) Disconnect(ownerID string) {
	y.tokens.Delete(ownerID)
}

// Publish uploads the artifact of a completed job and returns the new video id.
func (y *YouTube) Publish(ctx context.Context, ownerID string, job *domain.Job, meta Metadata) (string, error) {
	if job.Status != domain.JobStatusCompleted || job.Result == nil {
		return "", errors.Wrapf(domain.ErrJobNotCompleted, "job %s is %s", job.ID, job.Status)
	}
	item := y.tokens.Get(ownerID)
	if item == nil {
		return "", errors.WithStack(domain.ErrNotConnected)
	}
	if strings.TrimSpace(meta.Title) == "" {
		return "", domain.Validationf("title is required")
	}
	privacy := strings.ToLower(strings.TrimSpace(meta.Privacy))
	switch privacy {
	case "":
		privacy = "private"
	case "private", "unlisted", "public":
	default:
		return "", domain.Validationf("privacy must be private, unlisted or public")
	}

	src, err := y.store.Open(ctx, job.Result.VideoURI)
	if err != nil {
		return "", errors.Mark(errors.Wrap(err, "publish: open artifact"), domain.ErrStorage)
	}
	defer src.Close()

	cctx := y.clientContext(ctx)
	ts := y.oauth.TokenSource(cctx, item.Value())
	client := oauth2.NewClient(cctx, ts)

	body, contentType := multipartBody(videoResource(meta, privacy), job.Result.MIMEType, src)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, y.uploadURL, body)
	if err != nil {
		return "", errors.Wrap(err, "publish: create request")
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "publish: upload")
	}
	defer resp.Body.Close()

	// Keep a refreshed access token for the next upload.
	if tok, err := ts.Token(); err == nil {
		y.tokens.Set(ownerID, tok, ttlcache.DefaultTTL)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return "", errors.Newf("publish: youtube status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, "publish: decode response")
	}
	y.logger.Info().Str("user_id", ownerID).Str("job_id", job.ID).Str("video_id", out.ID).Msg("publish: uploaded to youtube")
	return out.ID, nil
}

func (y *YouTube) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, y.httpClient)
}

func videoResource(meta Metadata, privacy string) map[string]any {
	return map[string]any{
		"snippet": map[string]any{
			"title":       meta.Title,
			"description": meta.Description,
			"tags":        meta.Tags,
			"categoryId":  "22",
		},
		"status": map[string]any{
			"privacyStatus": privacy,
		},
	}
}

// multipartBody streams a multipart/related body holding the JSON resource
// followed by the media.
func multipartBody(resource any, mimeType string, media io.Reader) (io.Reader, string) {
	if mimeType == "" {
		mimeType = "video/mp4"
	}
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := func() error {
			part, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/json; charset=UTF-8"}})
			if err != nil {
				return err
			}
			if err := json.NewEncoder(part).Encode(resource); err != nil {
				return err
			}
			part, err = mw.CreatePart(textproto.MIMEHeader{"Content-Type": {mimeType}})
			if err != nil {
				return err
			}
			if _, err := io.Copy(part, media); err != nil {
				return err
			}
			return mw.Close()
		}()
		pw.CloseWithError(err)
	}()
	return pr, "multipart/related; boundary=" + mw.Boundary()
}
