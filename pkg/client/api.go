package client

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"
)

// RegisterInput is the payload for creating an account.
type RegisterInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FullName    string `json:"full_name"`
	Affiliation string `json:"affiliation,omitempty"`
}

// Register creates an account and stores the issued credential pair.
func (c *Client) Register(ctx context.Context, in RegisterInput) (AuthResponse, error) {
	var out AuthResponse
	if err := c.doPublic(ctx, http.MethodPost, "/v1/auth/register", in, &out); err != nil {
		return AuthResponse{}, err
	}
	c.store.Set(out.Tokens)
	return out, nil
}

// Login signs in with email and password and stores the issued credential
// pair.
func (c *Client) Login(ctx context.Context, email, password string) (AuthResponse, error) {
	in := map[string]string{"email": email, "password": password}
	var out AuthResponse
	if err := c.doPublic(ctx, http.MethodPost, "/v1/auth/login", in, &out); err != nil {
		return AuthResponse{}, err
	}
	c.store.Set(out.Tokens)
	return out, nil
}

// Logout revokes the refresh token server-side. Local credentials are
// dropped first, so the session ends even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	tokens := c.store.Tokens()
	c.store.Clear()
	if tokens.Refresh == "" {
		return nil
	}
	return c.doPublic(ctx, http.MethodPost, "/v1/auth/logout",
		map[string]string{"refresh": tokens.Refresh}, nil)
}

// OrcidAuthorization is the handoff to the ORCID consent page.
type OrcidAuthorization struct {
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
}

// OrcidAuthorize starts the ORCID flow. When the client is signed in the
// token rides along and the eventual callback links the iD to the current
// account instead of signing in.
func (c *Client) OrcidAuthorize(ctx context.Context, redirect string) (OrcidAuthorization, error) {
	path := "/v1/auth/orcid/authorize"
	if redirect != "" {
		path += "?redirect=" + url.QueryEscape(redirect)
	}
	var out OrcidAuthorization
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return OrcidAuthorization{}, err
	}
	return out, nil
}

// OrcidResult is the outcome of the ORCID callback: either a sign-in (the
// credential pair is stored) or a link onto an existing session.
type OrcidResult struct {
	User     User
	Linked   bool
	Redirect string
}

// OrcidCallback completes the ORCID flow with the code and state returned
// by the consent page.
func (c *Client) OrcidCallback(ctx context.Context, code, state string) (OrcidResult, error) {
	in := map[string]string{"code": code, "state": state}
	var out struct {
		User     User    `json:"user"`
		Tokens   *Tokens `json:"tokens"`
		Redirect string  `json:"redirect"`
	}
	if err := c.doPublic(ctx, http.MethodPost, "/v1/auth/orcid/callback", in, &out); err != nil {
		return OrcidResult{}, err
	}
	if out.Tokens != nil {
		c.store.Set(*out.Tokens)
	}
	return OrcidResult{User: out.User, Linked: out.Tokens == nil, Redirect: out.Redirect}, nil
}

// OrcidDisconnect unlinks the ORCID iD from the current account.
func (c *Client) OrcidDisconnect(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/v1/me/orcid", nil, nil)
}

// Me fetches the current user and profile.
func (c *Client) Me(ctx context.Context) (Me, error) {
	var out Me
	if err := c.do(ctx, http.MethodGet, "/v1/me", nil, &out); err != nil {
		return Me{}, err
	}
	return out, nil
}

// UserUpdate carries a partial account update; nil fields are untouched.
type UserUpdate struct {
	FullName    *string `json:"full_name,omitempty"`
	Affiliation *string `json:"affiliation,omitempty"`
}

// UpdateMe applies a partial update to the current account.
func (c *Client) UpdateMe(ctx context.Context, in UserUpdate) (User, error) {
	var out struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodPatch, "/v1/me", in, &out); err != nil {
		return User{}, err
	}
	return out.User, nil
}

// ChangePassword rotates the account password. Every other session is
// revoked server-side, so the caller should expect to sign in again
// elsewhere.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	in := map[string]string{"current_password": current, "new_password": next}
	return c.do(ctx, http.MethodPost, "/v1/me/password", in, nil)
}

// GetProfile fetches the current user's public profile together with its
// completion summary.
func (c *Client) GetProfile(ctx context.Context) (ProfileView, error) {
	var out ProfileView
	if err := c.do(ctx, http.MethodGet, "/v1/me/profile", nil, &out); err != nil {
		return ProfileView{}, err
	}
	return out, nil
}

// ProfileUpdate carries a partial profile update; nil fields are untouched.
type ProfileUpdate struct {
	Bio               *string   `json:"bio,omitempty"`
	AvatarURL         *string   `json:"avatar_url,omitempty"`
	Website           *string   `json:"website,omitempty"`
	Country           *string   `json:"country,omitempty"`
	Degrees           *string   `json:"degrees,omitempty"`
	ResearchInterests *[]string `json:"research_interests,omitempty"`
	Expertise         *[]string `json:"expertise,omitempty"`
}

// UpdateProfile applies a partial update to the public profile.
func (c *Client) UpdateProfile(ctx context.Context, in ProfileUpdate) (ProfileView, error) {
	var out ProfileView
	if err := c.do(ctx, http.MethodPut, "/v1/me/profile", in, &out); err != nil {
		return ProfileView{}, err
	}
	return out, nil
}

// SubmissionInput is the payload for creating a draft submission.
type SubmissionInput struct {
	Title    string         `json:"title"`
	Abstract string         `json:"abstract,omitempty"`
	Keywords []string       `json:"keywords,omitempty"`
	Section  string         `json:"section,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// CreateSubmission creates a draft submission owned by the current user.
func (c *Client) CreateSubmission(ctx context.Context, in SubmissionInput) (Submission, error) {
	var out struct {
		Submission Submission `json:"submission"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/submissions", in, &out); err != nil {
		return Submission{}, err
	}
	return out.Submission, nil
}

// ListOptions filters and pages a submission listing.
type ListOptions struct {
	Status  string
	Query   string
	Page    int
	PerPage int
}

// ListSubmissions returns one page of the caller's submissions; editors and
// admins see every submission.
func (c *Client) ListSubmissions(ctx context.Context, opts ListOptions) (SubmissionList, error) {
	values := url.Values{}
	if opts.Status != "" {
		values.Set("status", opts.Status)
	}
	if opts.Query != "" {
		values.Set("q", opts.Query)
	}
	if opts.Page > 0 {
		values.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PerPage > 0 {
		values.Set("per_page", strconv.Itoa(opts.PerPage))
	}

	path := "/v1/submissions"
	if len(values) > 0 {
		path += "?" + values.Encode()
	}

	var out SubmissionList
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return SubmissionList{}, err
	}
	return out, nil
}

// GetSubmission fetches a submission with its authors, files, and revisions.
func (c *Client) GetSubmission(ctx context.Context, id uuid.UUID) (SubmissionDetail, error) {
	var out SubmissionDetail
	if err := c.do(ctx, http.MethodGet, submissionPath(id, ""), nil, &out); err != nil {
		return SubmissionDetail{}, err
	}
	return out, nil
}

// SubmissionUpdate carries a partial submission update; nil fields are
// untouched.
type SubmissionUpdate struct {
	Title    *string         `json:"title,omitempty"`
	Abstract *string         `json:"abstract,omitempty"`
	Keywords *[]string       `json:"keywords,omitempty"`
	Section  *string         `json:"section,omitempty"`
	Metadata *map[string]any `json:"metadata,omitempty"`
}

// UpdateSubmission applies a partial update to a draft or revision-stage
// submission.
func (c *Client) UpdateSubmission(ctx context.Context, id uuid.UUID, in SubmissionUpdate) (Submission, error) {
	var out struct {
		Submission Submission `json:"submission"`
	}
	if err := c.do(ctx, http.MethodPatch, submissionPath(id, ""), in, &out); err != nil {
		return Submission{}, err
	}
	return out.Submission, nil
}

// DeleteSubmission removes a submission. Only drafts can be deleted.
func (c *Client) DeleteSubmission(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, submissionPath(id, ""), nil, nil)
}

// Submit moves a draft into review.
func (c *Client) Submit(ctx context.Context, id uuid.UUID) (Submission, error) {
	var out struct {
		Submission Submission `json:"submission"`
	}
	if err := c.do(ctx, http.MethodPost, submissionPath(id, "submit"), nil, &out); err != nil {
		return Submission{}, err
	}
	return out.Submission, nil
}

// Decide records an editorial decision. Editor role required.
func (c *Client) Decide(ctx context.Context, id uuid.UUID, decision, note string) (Submission, error) {
	in := map[string]string{"decision": decision, "note": note}
	var out struct {
		Submission Submission `json:"submission"`
	}
	if err := c.do(ctx, http.MethodPost, submissionPath(id, "decision"), in, &out); err != nil {
		return Submission{}, err
	}
	return out.Submission, nil
}

// Resubmit answers an open revision round and moves the submission back
// into review.
func (c *Client) Resubmit(ctx context.Context, id uuid.UUID, responseNote string) (Submission, Revision, error) {
	in := map[string]string{"response_note": responseNote}
	var out struct {
		Submission Submission `json:"submission"`
		Revision   Revision   `json:"revision"`
	}
	if err := c.do(ctx, http.MethodPost, submissionPath(id, "resubmit"), in, &out); err != nil {
		return Submission{}, Revision{}, err
	}
	return out.Submission, out.Revision, nil
}

// ListRevisions returns the revision rounds of a submission, oldest first.
func (c *Client) ListRevisions(ctx context.Context, id uuid.UUID) ([]Revision, error) {
	var out struct {
		Revisions []Revision `json:"revisions"`
	}
	if err := c.do(ctx, http.MethodGet, submissionPath(id, "revisions"), nil, &out); err != nil {
		return nil, err
	}
	return out.Revisions, nil
}

// AuthorInput is the payload for adding an author entry.
type AuthorInput struct {
	FullName        string `json:"full_name"`
	Email           string `json:"email,omitempty"`
	Affiliation     string `json:"affiliation,omitempty"`
	OrcidID         string `json:"orcid_id,omitempty"`
	IsCorresponding bool   `json:"is_corresponding,omitempty"`
}

// ListAuthors returns the ordered author list of a submission.
func (c *Client) ListAuthors(ctx context.Context, id uuid.UUID) ([]Authorship, error) {
	var out struct {
		Authors []Authorship `json:"authors"`
	}
	if err := c.do(ctx, http.MethodGet, submissionPath(id, "authors"), nil, &out); err != nil {
		return nil, err
	}
	return out.Authors, nil
}

// AddAuthor appends an author to a submission.
func (c *Client) AddAuthor(ctx context.Context, id uuid.UUID, in AuthorInput) (Authorship, error) {
	var out struct {
		Author Authorship `json:"author"`
	}
	if err := c.do(ctx, http.MethodPost, submissionPath(id, "authors"), in, &out); err != nil {
		return Authorship{}, err
	}
	return out.Author, nil
}

// AuthorUpdate carries a partial author update; nil fields are untouched.
type AuthorUpdate struct {
	FullName        *string `json:"full_name,omitempty"`
	Email           *string `json:"email,omitempty"`
	Affiliation     *string `json:"affiliation,omitempty"`
	OrcidID         *string `json:"orcid_id,omitempty"`
	IsCorresponding *bool   `json:"is_corresponding,omitempty"`
}

// UpdateAuthor applies a partial update to one author entry.
func (c *Client) UpdateAuthor(ctx context.Context, id, authorID uuid.UUID, in AuthorUpdate) (Authorship, error) {
	var out struct {
		Author Authorship `json:"author"`
	}
	path := submissionPath(id, "authors/"+authorID.String())
	if err := c.do(ctx, http.MethodPatch, path, in, &out); err != nil {
		return Authorship{}, err
	}
	return out.Author, nil
}

// RemoveAuthor deletes one author entry; the remaining authors close ranks.
func (c *Client) RemoveAuthor(ctx context.Context, id, authorID uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, submissionPath(id, "authors/"+authorID.String()), nil, nil)
}

// ReorderAuthors replaces the author order with the given id sequence, which
// must name every author exactly once.
func (c *Client) ReorderAuthors(ctx context.Context, id uuid.UUID, authorIDs []uuid.UUID) ([]Authorship, error) {
	in := map[string]any{"author_ids": authorIDs}
	var out struct {
		Authors []Authorship `json:"authors"`
	}
	if err := c.do(ctx, http.MethodPut, submissionPath(id, "authors/order"), in, &out); err != nil {
		return nil, err
	}
	return out.Authors, nil
}

// PresignUpload reserves an upload slot in object storage. The caller PUTs
// the payload straight to Upload.UploadURL, then attaches it with AttachFile.
func (c *Client) PresignUpload(ctx context.Context, id uuid.UUID, filename, contentType string, size int64) (Upload, error) {
	in := map[string]any{"filename": filename, "content_type": contentType, "size": size}
	var out Upload
	if err := c.do(ctx, http.MethodPost, submissionPath(id, "files/presign"), in, &out); err != nil {
		return Upload{}, err
	}
	return out, nil
}

// UploadFile PUTs payload bytes directly to a presigned URL, bypassing the
// portal. No bearer token is attached; the URL itself carries authorization.
func (c *Client) UploadFile(ctx context.Context, uploadURL string, body io.Reader, size int64, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, body)
	if err != nil {
		return err
	}
	req.ContentLength = size
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return mapTransportError(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upload rejected with status %d", resp.StatusCode)
	}
	return nil
}

// AttachInput records an uploaded object as a submission file.
type AttachInput struct {
	StorageKey  string     `json:"storage_key"`
	Filename    string     `json:"filename"`
	Kind        string     `json:"kind,omitempty"`
	Size        int64      `json:"size"`
	ContentType string     `json:"content_type,omitempty"`
	SHA256      string     `json:"sha256,omitempty"`
	RevisionID  *uuid.UUID `json:"revision_id,omitempty"`
}

// AttachFile attaches a finished upload to the submission.
func (c *Client) AttachFile(ctx context.Context, id uuid.UUID, in AttachInput) (ManuscriptFile, error) {
	var out struct {
		File ManuscriptFile `json:"file"`
	}
	if err := c.do(ctx, http.MethodPost, submissionPath(id, "files"), in, &out); err != nil {
		return ManuscriptFile{}, err
	}
	return out.File, nil
}

// ListFiles returns the ordered attachments of a submission.
func (c *Client) ListFiles(ctx context.Context, id uuid.UUID) ([]ManuscriptFile, error) {
	var out struct {
		Files []ManuscriptFile `json:"files"`
	}
	if err := c.do(ctx, http.MethodGet, submissionPath(id, "files"), nil, &out); err != nil {
		return nil, err
	}
	return out.Files, nil
}

// DownloadFile returns a presigned download link for one attachment.
func (c *Client) DownloadFile(ctx context.Context, id, fileID uuid.UUID) (Download, error) {
	var out Download
	path := submissionPath(id, "files/"+fileID.String()+"/download")
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return Download{}, err
	}
	return out, nil
}

// DeleteFile removes an attachment and its stored object.
func (c *Client) DeleteFile(ctx context.Context, id, fileID uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, submissionPath(id, "files/"+fileID.String()), nil, nil)
}

// GetReceipt fetches the signed receipt of a submitted manuscript.
func (c *Client) GetReceipt(ctx context.Context, id uuid.UUID) (Receipt, error) {
	var out Receipt
	if err := c.do(ctx, http.MethodGet, submissionPath(id, "receipt"), nil, &out); err != nil {
		return Receipt{}, err
	}
	return out, nil
}

// ExportSubmission streams the signed archive of a submission. The caller
// owns the returned body and must close it.
func (c *Client) ExportSubmission(ctx context.Context, id uuid.UUID) (io.ReadCloser, string, error) {
	resp, err := c.stream(ctx, http.MethodGet, submissionPath(id, "export"))
	if err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("submission-%s.tar.zst", id)
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		if name := params["filename"]; name != "" {
			filename = name
		}
	}
	return resp.Body, filename, nil
}

// StartExtraction queues metadata extraction for an uploaded manuscript.
func (c *Client) StartExtraction(ctx context.Context, id uuid.UUID, storageKey string) (ExtractionTask, error) {
	in := map[string]string{"storage_key": storageKey}
	var out struct {
		Task ExtractionTask `json:"task"`
	}
	if err := c.do(ctx, http.MethodPost, submissionPath(id, "extractions"), in, &out); err != nil {
		return ExtractionTask{}, err
	}
	return out.Task, nil
}

// GetExtractionTask polls one extraction task.
func (c *Client) GetExtractionTask(ctx context.Context, taskID uuid.UUID) (ExtractionTask, error) {
	var out struct {
		Task ExtractionTask `json:"task"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/extractions/"+taskID.String(), nil, &out); err != nil {
		return ExtractionTask{}, err
	}
	return out.Task, nil
}

func submissionPath(id uuid.UUID, rest string) string {
	path := "/v1/submissions/" + id.String()
	if rest != "" {
		path += "/" + rest
	}
	return path
}
