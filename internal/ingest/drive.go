package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/cenkalti/backoff/v4"

	"github.com/akolanti/RagAPI/internal/customHttpClient"
	"github.com/akolanti/RagAPI/internal/domain/commonModels"
	"github.com/akolanti/RagAPI/pkg/logger_i"
)

const (
	driveListURL = "https://www.googleapis.com/drive/v3/files"
	driveDocMime = "application/vnd.google-apps.document"
)

type DriveFile struct {
	Id           string `json:"id"`
	Name         string `json:"name"`
	MimeType     string `json:"mimeType"`
	ModifiedTime string `json:"modifiedTime"`
	WebViewLink  string `json:"webViewLink"`
}

type DriveFileList struct {
	NextPageToken string      `json:"nextPageToken"`
	Files         []DriveFile `json:"files"`
}

// DriveClient is the wire-level surface of the drive API; swapped for a fake
// in tests.
type DriveClient interface {
	ListFolder(ctx context.Context, folderId string, pageToken string) (DriveFileList, error)
	FetchFileText(ctx context.Context, fileId string, mimeType string) (string, error)
}

// DriveConnector walks the configured folders and yields files modified
// after the cursor. The new cursor is the newest modifiedTime seen; the
// pipeline persists it only when the whole run succeeds, so a failed run
// re-reads the same window.
type DriveConnector struct {
	client DriveClient
	logger *logger_i.Logger
}

func NewDriveConnector(client DriveClient) *DriveConnector {
	return &DriveConnector{
		client: client,
		logger: logger_i.NewLogger("Drive Connector"),
	}
}

func (c *DriveConnector) Fetch(ctx context.Context, source commonModels.Source, cursor string) ([]SourceDocument, string, error) {
	var docs []SourceDocument
	latest := cursor

	for _, folderId := range source.Config.FolderIds {
		pageToken := ""
		for {
			list, err := c.listWithRetry(ctx, folderId, pageToken)
			if err != nil {
				return nil, cursor, fmt.Errorf("listing folder %s: %w", folderId, err)
			}

			for _, file := range list.Files {
				// modifiedTime is RFC 3339, so lexical comparison is
				// chronological comparison
				if cursor != "" && file.ModifiedTime != "" && file.ModifiedTime <= cursor {
					continue
				}
				text, err := c.client.FetchFileText(ctx, file.Id, file.MimeType)
				if err != nil {
					return nil, cursor, fmt.Errorf("fetching file %s: %w", file.Id, err)
				}
				docs = append(docs, SourceDocument{
					ExternalId:   file.Id,
					Title:        file.Name,
					CanonicalURL: file.WebViewLink,
					Text:         text,
					ACL:          defaultACL(source.Config.ACL),
				})
				if file.ModifiedTime > latest {
					latest = file.ModifiedTime
				}
			}

			pageToken = list.NextPageToken
			if pageToken == "" {
				break
			}
		}
	}

	c.logger.Debug("drive fetch complete", "sourceId", source.Id, "changed", len(docs))
	return docs, latest, nil
}

func (c *DriveConnector) listWithRetry(ctx context.Context, folderId string, pageToken string) (DriveFileList, error) {
	var list DriveFileList
	operation := func() error {
		var err error
		list, err = c.client.ListFolder(ctx, folderId, pageToken)
		return err
	}
	err := backoff.Retry(operation, backoff.WithContext(backoff.NewExponentialBackOff(), ctx))
	return list, err
}

// HTTPDriveClient talks to the real drive API over the shared pooled client.
type HTTPDriveClient struct {
	accessToken string
	httpClient  *http.Client
}

func NewHTTPDriveClient(accessToken string) *HTTPDriveClient {
	return &HTTPDriveClient{
		accessToken: accessToken,
		httpClient:  customHttpClient.GetPooledClient(),
	}
}

func (c *HTTPDriveClient) ListFolder(ctx context.Context, folderId string, pageToken string) (DriveFileList, error) {
	params := url.Values{
		"q":                         {fmt.Sprintf("'%s' in parents and trashed=false", folderId)},
		"fields":                    {"nextPageToken,files(id,name,mimeType,modifiedTime,webViewLink)"},
		"pageSize":                  {"100"},
		"supportsAllDrives":         {"true"},
		"includeItemsFromAllDrives": {"true"},
	}
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	var list DriveFileList
	body, err := c.get(ctx, driveListURL+"?"+params.Encode())
	if err != nil {
		return list, err
	}
	err = json.Unmarshal(body, &list)
	return list, err
}

func (c *HTTPDriveClient) FetchFileText(ctx context.Context, fileId string, mimeType string) (string, error) {
	var target string
	if mimeType == driveDocMime {
		target = fmt.Sprintf("%s/%s/export?mimeType=%s", driveListURL, fileId, url.QueryEscape("text/plain"))
	} else {
		target = fmt.Sprintf("%s/%s?alt=media", driveListURL, fileId)
	}

	body, err := c.get(ctx, target)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *HTTPDriveClient) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("drive api status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
