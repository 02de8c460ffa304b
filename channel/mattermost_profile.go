package channel

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/perchbot/perch/logger"
)

const (
	profileDescriptionMaxRunes = 128
	avatarMaxBytes             = 10 << 20
)

// syncBotProfile pushes display name, description, and avatar from an aieos
// identity document onto the bot account. Best effort: failures are logged
// and never block startup. Patching bots needs a token with admin rights;
// the bot token is the fallback.
func (m *MattermostChannel) syncBotProfile(ctx context.Context) {
	if m.aieosPath == "" {
		return
	}

	data, err := os.ReadFile(m.aieosPath)
	if err != nil {
		logger.Warn("mattermost: read aieos profile", "path", m.aieosPath, "err", err)
		return
	}

	displayName := gjson.GetBytes(data, "identity.names.first").String()
	description := truncateRunes(gjson.GetBytes(data, "identity.bio").String(), profileDescriptionMaxRunes)

	token := m.adminToken
	if token == "" {
		token = m.botToken
	}

	patch := map[string]string{}
	if displayName != "" {
		patch["display_name"] = displayName
	}
	if description != "" {
		patch["description"] = description
	}
	if len(patch) > 0 {
		m.patchBot(ctx, token, patch)
	}

	if avatar, contentType := m.loadAvatar(ctx); len(avatar) > 0 {
		m.uploadAvatar(ctx, token, avatar, contentType)
	}
}

func (m *MattermostChannel) patchBot(ctx context.Context, token string, patch map[string]string) {
	resp, err := m.doJSON(ctx, http.MethodPut, "/bots/"+m.botUserID, token, patch)
	if err != nil {
		logger.Warn("mattermost: patch bot profile", "err", err)
		return
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		logger.Warn("mattermost: bot profile patch forbidden, admin token required")
	case resp.StatusCode >= 300:
		logger.Warn("mattermost: patch bot profile", "status", resp.StatusCode)
	default:
		logger.Info("mattermost: bot profile synced", "displayName", patch["display_name"])
	}
}

// loadAvatar prefers an avatar.png next to the aieos file, then falls back
// to downloading the configured avatar URL.
func (m *MattermostChannel) loadAvatar(ctx context.Context) ([]byte, string) {
	local := filepath.Join(filepath.Dir(m.aieosPath), "avatar.png")
	if data, err := os.ReadFile(local); err == nil {
		return data, "image/png"
	}

	if m.avatarURL == "" {
		return nil, ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.avatarURL, nil)
	if err != nil {
		logger.Warn("mattermost: avatar url", "err", err)
		return nil, ""
	}
	resp, err := m.httpc.Do(req)
	if err != nil {
		logger.Warn("mattermost: fetch avatar", "err", err)
		return nil, ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		logger.Warn("mattermost: fetch avatar", "status", resp.StatusCode)
		return nil, ""
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, avatarMaxBytes+1))
	if err != nil {
		logger.Warn("mattermost: fetch avatar", "err", err)
		return nil, ""
	}
	if len(data) > avatarMaxBytes {
		logger.Warn("mattermost: avatar exceeds size limit, skipping", "url", m.avatarURL)
		return nil, ""
	}

	return data, avatarContentType(m.avatarURL)
}

// avatarContentType sniffs the type from the URL path extension. The query
// string is stripped first so signed URLs do not confuse the extension.
func avatarContentType(rawURL string) string {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}
	if strings.EqualFold(filepath.Ext(path), ".png") {
		return "image/png"
	}
	return "image/jpeg"
}

func (m *MattermostChannel) uploadAvatar(ctx context.Context, token string, image []byte, contentType string) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="image"; filename="avatar"`)
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		logger.Warn("mattermost: build avatar upload", "err", err)
		return
	}
	if _, err := part.Write(image); err != nil {
		logger.Warn("mattermost: build avatar upload", "err", err)
		return
	}
	if err := w.Close(); err != nil {
		logger.Warn("mattermost: build avatar upload", "err", err)
		return
	}

	endpoint := m.apiURL(fmt.Sprintf("/users/%s/image", m.botUserID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		logger.Warn("mattermost: avatar upload", "err", err)
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := m.httpc.Do(req)
	if err != nil {
		logger.Warn("mattermost: avatar upload", "err", err)
		return
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		logger.Warn("mattermost: avatar upload forbidden, admin token required")
	case resp.StatusCode >= 300:
		logger.Warn("mattermost: avatar upload", "status", resp.StatusCode)
	default:
		logger.Info("mattermost: bot avatar synced")
	}
}

// truncateRunes cuts s to at most n runes, never splitting a character.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
