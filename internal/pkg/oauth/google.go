package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const tokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

type GoogleUser struct {
	Sub        string `json:"sub"`
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Picture    string `json:"picture"`
	Audience   string `json:"aud"`
}

type GoogleOAuth struct {
	config        *oauth2.Config
	httpClient    *http.Client
	tokenInfoBase string
}

func NewGoogleOAuth(clientID, clientSecret, redirectURI string) *GoogleOAuth {
	return &GoogleOAuth{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		httpClient:    http.DefaultClient,
		tokenInfoBase: tokenInfoURL,
	}
}

// GetAuthURL 获取 Google 授权 URL
func (g *GoogleOAuth) GetAuthURL(state string) string {
	return g.config.AuthCodeURL(state)
}

// Exchange 用授权码换取 access token
func (g *GoogleOAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return g.config.Exchange(ctx, code)
}

// VerifyIDToken 校验前端携带的 Google ID Token,返回用户信息。
// 通过 tokeninfo 端点校验签名和有效期,并检查 audience 是否为本应用。
func (g *GoogleOAuth) VerifyIDToken(ctx context.Context, idToken string) (*GoogleUser, error) {
	reqURL := g.tokenInfoBase + "?id_token=" + url.QueryEscape(idToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build tokeninfo request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to verify id token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("google tokeninfo error: %s", string(body))
	}

	var user GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode tokeninfo response: %w", err)
	}

	if user.Audience != g.config.ClientID {
		return nil, fmt.Errorf("id token audience mismatch")
	}
	if user.Sub == "" || user.Email == "" {
		return nil, fmt.Errorf("id token missing subject or email")
	}

	return &user, nil
}

// GetUser 用 access token 获取 Google 用户信息(授权码流程)
func (g *GoogleOAuth) GetUser(ctx context.Context, token *oauth2.Token) (*GoogleUser, error) {
	client := g.config.Client(ctx, token)

	resp, err := client.Get("https://openidconnect.googleapis.com/v1/userinfo")
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("google api error: %s", string(body))
	}

	var user GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}

	return &user, nil
}
