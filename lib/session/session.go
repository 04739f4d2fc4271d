package session

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"ordervault/lib/browser"
	"ordervault/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// Client performs cheap, browserless requests against the storefront
// using the same identity as the browser session. It exists so the
// pipeline can verify the imported cookies still authenticate before
// paying the cost of launching a browser pool.
type Client struct {
	Http    *resty.Client
	BaseUrl *url.URL
}

type ClientOptions struct {
	BaseUrl string
	Timeout time.Duration
}

func NewClient(opts ClientOptions) (*Client, error) {
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Second * 30
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(opts.Timeout)

	telemetry.InstrumentResty(client, "ordervault.lib.session")

	return &Client{
		Http:    client,
		BaseUrl: baseUrl,
	}, nil
}

// ImportCookies copies a session provider's exported cookies into
// this client's jar.
func (c *Client) ImportCookies(cookies []browser.Cookie) {
	converted := make([]*http.Cookie, 0, len(cookies))
	for _, ck := range cookies {
		converted = append(converted, &http.Cookie{
			Name:     ck.Name,
			Value:    ck.Value,
			Domain:   ck.Domain,
			Path:     ck.Path,
			Secure:   ck.Secure,
			HttpOnly: ck.HTTPOnly,
		})
	}
	c.Http.SetCookies(converted)
}

var ErrNotLoggedIn = fmt.Errorf("session cookies no longer authenticate")

// ProbeLoggedIn fetches the given path and checks whether the response
// is still an authenticated view rather than a sign-in challenge.
func (c *Client) ProbeLoggedIn(ctx context.Context, path string) error {
	res, err := c.Http.R().
		SetContext(ctx).
		Get(path)
	if err != nil {
		return err
	}

	finalUrl := res.RawResponse.Request.URL
	if strings.Contains(finalUrl.Path, "/ap/signin") {
		return ErrNotLoggedIn
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return err
	}
	if doc.Find("form[name=signIn], input#ap_email").Length() > 0 {
		return ErrNotLoggedIn
	}

	return nil
}
