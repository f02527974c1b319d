package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"tubenotes/internal/models"
	"tubenotes/shared/config"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

type Client struct {
	service     *youtube.Service
	config      *config.YouTubeConfig
	oauthConfig *oauth2.Config
	token       *oauth2.Token
}

func NewClient(cfg *config.YouTubeConfig) (*Client, error) {
	ctx := context.Background()

	// Create OAuth2 config for the device authorization flow. Moving videos
	// between playlists needs the full youtube scope, not just readonly.
	oauthConfig := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes: []string{
			"https://www.googleapis.com/auth/youtube.readonly",
			"https://www.googleapis.com/auth/youtube",
		},
		Endpoint: google.Endpoint,
	}

	// Get OAuth2 token
	token, err := getToken(oauthConfig, cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("failed to get OAuth token: %w", err)
	}

	// Create token source that auto-refreshes and saves token
	tokenSource := &tokenSaver{
		config:    oauthConfig,
		token:     token,
		tokenFile: cfg.TokenFile,
	}

	// Create authenticated HTTP client with auto-refresh
	httpClient := oauth2.NewClient(ctx, tokenSource)

	// Create YouTube service
	service, err := youtube.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}

	return &Client{
		service:     service,
		config:      cfg,
		oauthConfig: oauthConfig,
		token:       token,
	}, nil
}

// ListPlaylistVideos returns every entry of the playlist in playlist order,
// paging through the API as needed. The playlist is not modified.
func (c *Client) ListPlaylistVideos(ctx context.Context, playlistID string) ([]*models.Video, error) {
	var videos []*models.Video
	pageToken := ""

	for {
		call := c.service.PlaylistItems.List([]string{"snippet", "contentDetails"}).
			PlaylistId(playlistID).
			MaxResults(50).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		response, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list playlist %s: %w", playlistID, err)
		}

		for _, item := range response.Items {
			if item.ContentDetails == nil || item.ContentDetails.VideoId == "" {
				continue
			}
			videoID := item.ContentDetails.VideoId

			video := &models.Video{
				ID:             videoID,
				PlaylistItemID: item.Id,
				URL:            fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID),
			}
			if item.Snippet != nil {
				video.Title = item.Snippet.Title
				video.Channel = item.Snippet.VideoOwnerChannelTitle
			}
			videos = append(videos, video)
		}

		pageToken = response.NextPageToken
		if pageToken == "" {
			break
		}
	}

	log.Printf("Retrieved %d videos from playlist %s", len(videos), playlistID)
	return videos, nil
}

// VideoDuration returns the human-readable duration label for a video, e.g.
// "1:30:45".
func (c *Client) VideoDuration(ctx context.Context, videoID string) (string, error) {
	response, err := c.service.Videos.List([]string{"contentDetails"}).
		Id(videoID).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to get details for video %s: %w", videoID, err)
	}

	if len(response.Items) == 0 {
		return "", fmt.Errorf("video not found: %s", videoID)
	}

	item := response.Items[0]
	if item.ContentDetails == nil {
		return "", fmt.Errorf("no content details for video %s", videoID)
	}

	return formatDurationLabel(parseDurationSeconds(item.ContentDetails.Duration)), nil
}

// MoveVideo inserts the video into the target playlist and removes it from
// the playlist it was listed from. Inserting a video that is already in the
// target, or removing an entry that is already gone, is treated as a no-op
// so that repeating a partially completed move converges.
func (c *Client) MoveVideo(ctx context.Context, video *models.Video, targetPlaylistID string) error {
	if video == nil {
		return fmt.Errorf("video cannot be nil")
	}
	if video.PlaylistItemID == "" {
		return fmt.Errorf("video %s has no playlist item ID", video.ID)
	}

	insert := c.service.PlaylistItems.Insert([]string{"snippet"}, &youtube.PlaylistItem{
		Snippet: &youtube.PlaylistItemSnippet{
			PlaylistId: targetPlaylistID,
			ResourceId: &youtube.ResourceId{
				Kind:    "youtube#video",
				VideoId: video.ID,
			},
		},
	}).Context(ctx)

	if _, err := insert.Do(); err != nil {
		if isBenignMoveError(err, http.StatusConflict) {
			log.Printf("Video %s already in playlist %s", video.ID, targetPlaylistID)
		} else {
			return fmt.Errorf("failed to add video %s to playlist %s: %w", video.ID, targetPlaylistID, err)
		}
	}

	if err := c.service.PlaylistItems.Delete(video.PlaylistItemID).Context(ctx).Do(); err != nil {
		if isBenignMoveError(err, http.StatusNotFound) {
			log.Printf("Playlist item %s already removed", video.PlaylistItemID)
			return nil
		}
		return fmt.Errorf("failed to remove video %s from source playlist (it is now in both playlists): %w", video.ID, err)
	}

	log.Printf("Moved video %s to playlist %s", video.ID, targetPlaylistID)
	return nil
}

func isBenignMoveError(err error, status int) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == status
	}
	return false
}

// tokenSaver wraps an oauth2.TokenSource to automatically save refreshed tokens.
// It intercepts token refresh operations and persists the new token to disk,
// ensuring that refreshed tokens survive application restarts.
type tokenSaver struct {
	config    *oauth2.Config
	token     *oauth2.Token
	tokenFile string
	mu        sync.Mutex // Protects concurrent token refresh operations
}

// Token implements oauth2.TokenSource interface.
// It returns the current token, refreshing it if necessary and saving any
// refreshed token to disk. This ensures token persistence across restarts.
func (ts *tokenSaver) Token() (*oauth2.Token, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	// Create a token source that can refresh the token
	tokenSource := ts.config.TokenSource(context.Background(), ts.token)

	// Get the token (this will refresh if needed)
	newToken, err := tokenSource.Token()
	if err != nil {
		return nil, err
	}

	// If the token was refreshed, save it
	if newToken.AccessToken != ts.token.AccessToken {
		log.Println("Token refreshed, saving to file")
		ts.token = newToken
		if err := saveToken(ts.tokenFile, newToken); err != nil {
			log.Printf("Warning: Failed to save refreshed token: %v", err)
		}
	}

	return newToken, nil
}

// getToken retrieves an OAuth2 token from disk or initiates the OAuth flow if needed.
// It prioritizes loading existing tokens with refresh tokens, even if expired,
// as they can be automatically refreshed. Only initiates new OAuth flow if no
// valid refresh token exists.
func getToken(config *oauth2.Config, tokenFile string) (*oauth2.Token, error) {
	// Try to load token from file
	tok, err := tokenFromFile(tokenFile)
	if err == nil {
		// Even if token appears expired, keep it if it has a refresh token
		// The tokenSaver will handle refreshing it
		if tok.RefreshToken != "" {
			log.Printf("Loaded token from file (expires: %v)", tok.Expiry)
			return tok, nil
		}
		// If no refresh token but still valid, use it
		if tok.Valid() {
			return tok, nil
		}
	}

	// If token doesn't exist or has no refresh token, get new one
	log.Println("Getting new token from web...")
	tok, err = getTokenFromWeb(config)
	if err != nil {
		return nil, err
	}

	// Save token to file
	if err := saveToken(tokenFile, tok); err != nil {
		log.Printf("Warning: Failed to save token: %v", err)
	}
	return tok, nil
}

func getTokenFromWeb(config *oauth2.Config) (*oauth2.Token, error) {
	if tok, err := getTokenWithDeviceFlow(config); err == nil {
		return tok, nil
	} else {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			log.Printf("Device authorization response failed (%s): %s", retrieveErr.Response.Status, strings.TrimSpace(string(retrieveErr.Body)))
		} else {
			log.Printf("Device authorization flow failed: %v", err)
		}

		return nil, fmt.Errorf("device authorization failed: %w. Ensure your OAuth client is created as 'TVs and Limited Input devices' and that the YouTube Data API v3 is enabled.", err)
	}
}

func getTokenWithDeviceFlow(config *oauth2.Config) (*oauth2.Token, error) {
	ctx := context.Background()

	resp, err := config.DeviceAuth(ctx, oauth2.AccessTypeOffline)
	if err != nil {
		return nil, fmt.Errorf("unable to start device authorization: %w", err)
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 80))
	fmt.Printf("YOUTUBE DEVICE AUTHORIZATION REQUIRED\n")
	fmt.Printf("%s\n", strings.Repeat("=", 80))
	fmt.Printf("1. Visit %s in your browser (any device works).\n", resp.VerificationURI)
	fmt.Printf("2. Enter this code when prompted: %s\n\n", resp.UserCode)
	if completeURL := strings.TrimSpace(resp.VerificationURIComplete); completeURL != "" {
		fmt.Printf("   If Google accepts direct links for your account, you can instead open:\n\n")
		fmt.Printf("   %s\n\n", completeURL)
		fmt.Printf("   If you see an 'invalid_request' error, fall back to the code entry flow above.\n\n")
	}
	fmt.Printf("Waiting for authorization to complete... (Ctrl+C to cancel)\n")
	fmt.Printf("%s\n", strings.Repeat("-", 80))

	tok, err := config.DeviceAccessToken(ctx, resp, oauth2.AccessTypeOffline)
	if err != nil {
		return nil, fmt.Errorf("device authorization did not complete: %w", err)
	}

	fmt.Printf("\n✅ Authorization successful! Token saved.\n")
	fmt.Printf("%s\n\n", strings.Repeat("=", 80))

	return tok, nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

func saveToken(path string, token *oauth2.Token) error {
	// Ensure parent directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("unable to create token directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache oauth token: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("failed to encode oauth token: %w", err)
	}
	fmt.Printf("Token saved to: %s\n", path)
	return nil
}

func parseDurationSeconds(duration string) int {
	if duration == "" {
		return 0
	}

	// Parse ISO 8601 duration format (e.g., "PT1M30S", "PT45S", "PT2H15M30S")
	re := regexp.MustCompile(`PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?`)
	matches := re.FindStringSubmatch(duration)

	if len(matches) == 0 {
		return 0
	}

	var totalSeconds int

	// Hours
	if matches[1] != "" {
		if hours, err := strconv.Atoi(matches[1]); err == nil {
			totalSeconds += hours * 3600
		}
	}

	// Minutes
	if matches[2] != "" {
		if minutes, err := strconv.Atoi(matches[2]); err == nil {
			totalSeconds += minutes * 60
		}
	}

	// Seconds
	if matches[3] != "" {
		if seconds, err := strconv.Atoi(matches[3]); err == nil {
			totalSeconds += seconds
		}
	}

	return totalSeconds
}

// formatDurationLabel renders a duration in seconds the way YouTube shows
// it: "1:30:45" with hours, "3:33" without.
func formatDurationLabel(totalSeconds int) string {
	if totalSeconds <= 0 {
		return "Unknown"
	}

	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// RefreshToken manually triggers a token refresh if needed.
// This is called proactively before scheduled runs to ensure the token stays
// fresh. The refreshed token is automatically saved to disk.
func (c *Client) RefreshToken() error {
	log.Println("Checking if token needs refresh...")

	// Create a token source that can refresh the token
	tokenSource := c.oauthConfig.TokenSource(context.Background(), c.token)

	// Get the token (this will refresh if needed)
	newToken, err := tokenSource.Token()
	if err != nil {
		return fmt.Errorf("failed to refresh token: %w", err)
	}

	// If the token was refreshed, save it
	if newToken.AccessToken != c.token.AccessToken {
		log.Println("Token refreshed, saving to file")
		c.token = newToken
		if err := saveToken(c.config.TokenFile, newToken); err != nil {
			return fmt.Errorf("failed to save refreshed token: %w", err)
		}
	} else {
		log.Printf("Token still valid until %v", c.token.Expiry)
	}

	return nil
}
