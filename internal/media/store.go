package media

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Store is the path-keyed blob collaborator. The domain layer only ever holds
// the returned path strings; it never inspects blob contents.
type Store interface {
	Upload(ctx context.Context, name, base64Image string) (string, error)
}

// CloudinaryStore uploads base64-encoded images through Cloudinary's signed
// upload endpoint and returns the hosted URL as the opaque storage path.
type CloudinaryStore struct {
	cloudName string
	apiKey    string
	apiSecret string
	folder    string
	client    *http.Client
}

func NewCloudinaryStore(cloudName, apiKey, apiSecret, folder string) *CloudinaryStore {
	return &CloudinaryStore{
		cloudName: cloudName,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		folder:    folder,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *CloudinaryStore) Upload(ctx context.Context, name, base64Image string) (string, error) {
	if s.cloudName == "" || s.apiKey == "" || s.apiSecret == "" {
		return "", fmt.Errorf("media: storage credentials not configured")
	}
	if base64Image == "" {
		return "", fmt.Errorf("media: empty image payload")
	}

	// Accept both bare base64 and data-URL form.
	payload := base64Image
	if i := strings.Index(base64Image, ","); i != -1 {
		payload = base64Image[i+1:]
	}

	publicID := name
	if s.folder != "" {
		publicID = s.folder + "/" + name
	}
	timestamp := fmt.Sprintf("%d", time.Now().Unix())

	form := url.Values{}
	form.Add("file", "data:image/jpeg;base64,"+payload)
	form.Add("api_key", s.apiKey)
	form.Add("public_id", publicID)
	form.Add("timestamp", timestamp)

	signature := fmt.Sprintf("public_id=%s&timestamp=%s%s", publicID, timestamp, s.apiSecret)
	form.Add("signature", fmt.Sprintf("%x", sha1.Sum([]byte(signature))))

	endpoint := "https://api.cloudinary.com/v1_1/" + s.cloudName + "/image/upload"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", err
	}
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("media: upload failed with status %d", res.StatusCode)
	}

	var parsed struct {
		SecureURL string `json:"secure_url"`
		URL       string `json:"url"`
		Error     struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}
	if parsed.Error.Message != "" {
		return "", fmt.Errorf("media: %s", parsed.Error.Message)
	}

	if parsed.SecureURL != "" {
		return parsed.SecureURL, nil
	}
	if parsed.URL != "" {
		return parsed.URL, nil
	}
	return "", fmt.Errorf("media: upload response had no URL")
}
