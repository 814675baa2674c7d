package gdrive

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const documentMIMEType = "application/vnd.google-apps.document"

// Uploader stores transcripts as Google Docs in one folder. Uploading the
// same name again replaces the document's content.
type Uploader struct {
	service  *drive.Service
	folderID string
	fileIDs  map[string]string
	mu       sync.Mutex
}

func NewUploader(ctx context.Context, credPath, folderID string) (*Uploader, error) {
	if strings.TrimSpace(folderID) == "" {
		return nil, fmt.Errorf("drive folder id is required")
	}

	creds, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	config, err := google.CredentialsFromJSONWithTypeAndParams(ctx, creds, google.ServiceAccount, google.CredentialsParams{Scopes: []string{drive.DriveFileScope}})
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	return NewUploaderWithOptions(ctx, folderID, option.WithCredentials(config))
}

// NewUploaderWithOptions builds an uploader from explicit client options.
func NewUploaderWithOptions(ctx context.Context, folderID string, opts ...option.ClientOption) (*Uploader, error) {
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return &Uploader{
		service:  svc,
		folderID: folderID,
		fileIDs:  make(map[string]string),
	}, nil
}

// Upload writes content to the document called name and returns its file id.
func (u *Uploader) Upload(ctx context.Context, name, content string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if fileID, ok := u.fileIDs[name]; ok {
		_, err := u.service.Files.Update(fileID, &drive.File{}).
			Media(strings.NewReader(content)).
			Context(ctx).
			Do()
		if err != nil {
			return "", fmt.Errorf("drive update: %w", err)
		}
		return fileID, nil
	}

	doc, err := u.service.Files.Create(&drive.File{
		Name:     name,
		MimeType: documentMIMEType,
		Parents:  []string{u.folderID},
	}).Media(strings.NewReader(content)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("drive create: %w", err)
	}

	u.fileIDs[name] = doc.Id
	return doc.Id, nil
}
