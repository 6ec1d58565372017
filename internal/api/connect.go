package api

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/labstack/echo/v4"
)

// The connect page is the single human-facing step of the handoff: the user
// pastes their Slack token here, the page posts it to /oauth/store-token and
// then sends the browser back to the caller's redirect_uri with the code.
var connectTemplate = template.Must(template.New("connect").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Connect Slack</title>
  <style>
    body { font-family: sans-serif; max-width: 480px; margin: 48px auto; padding: 0 16px; }
    input[type=text] { width: 100%; padding: 8px; font-family: monospace; }
    button { margin-top: 12px; padding: 8px 24px; }
    .error { color: #b00020; margin-top: 12px; }
  </style>
</head>
<body>
  <h1>Connect your Slack workspace</h1>
  <p>Paste your Slack user token (<code>xoxp-...</code>). It is validated
  against Slack and exchanged for a server-issued key; the token itself is
  never handed to the assistant.</p>
  <form id="connect-form">
    <input type="text" id="token" name="token" placeholder="xoxp-..." autocomplete="off">
    <button type="submit">Connect</button>
    <div class="error" id="error"></div>
  </form>
  <script>
    const authCode = {{.AuthCode}};
    const redirectURI = {{.RedirectURI}};
    const state = {{.State}};
    document.getElementById('connect-form').addEventListener('submit', async (e) => {
      e.preventDefault();
      const token = document.getElementById('token').value.trim();
      const errBox = document.getElementById('error');
      errBox.textContent = '';
      try {
        const resp = await fetch('/oauth/store-token', {
          method: 'POST',
          headers: {'Content-Type': 'application/json'},
          body: JSON.stringify({authCode: authCode, token: token}),
        });
        const body = await resp.json();
        if (!resp.ok) {
          errBox.textContent = body.error_description || body.error || 'connection failed';
          return;
        }
        const target = new URL(redirectURI);
        target.searchParams.set('code', authCode);
        if (state) target.searchParams.set('state', state);
        window.location.href = target.toString();
      } catch (err) {
        errBox.textContent = 'connection failed: ' + err;
      }
    });
  </script>
</body>
</html>
`))

// ConnectPageHandler renders the token submission form.
func (a *API) ConnectPageHandler(c echo.Context) error {
	authCode := c.QueryParam("auth_code")
	redirectURI := c.QueryParam("redirect_uri")
	if authCode == "" || redirectURI == "" {
		return c.String(http.StatusBadRequest, "missing auth_code or redirect_uri")
	}

	var buf bytes.Buffer
	err := connectTemplate.Execute(&buf, map[string]string{
		"AuthCode":    authCode,
		"RedirectURI": redirectURI,
		"State":       c.QueryParam("state"),
	})
	if err != nil {
		return c.String(http.StatusInternalServerError, "failed to render page")
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}
