package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/sugarcraft/academy-backend/pkg/config"
	pkgerrors "github.com/sugarcraft/academy-backend/pkg/errors"
)

// Client reads course and product content from the Strapi CMS.
type Client struct {
	http *resty.Client
	base string
}

func New(cfg config.StrapiConfig) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("strapi base url is required")
	}
	httpClient := resty.New().
		SetBaseURL(base).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.APIToken != "" {
		httpClient.SetAuthToken(cfg.APIToken)
	}
	return &Client{http: httpClient, base: base}, nil
}

type entryList struct {
	Data []entry `json:"data"`
}

type entry struct {
	ID         int            `json:"id"`
	Attributes map[string]any `json:"attributes"`
}

// PlanPriceID resolves a subscription plan id to its Stripe price id.
func (c *Client) PlanPriceID(ctx context.Context, planID string) (string, error) {
	planID = strings.TrimSpace(planID)
	if planID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "plan id is required")
	}

	var payload entryList
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("filters[planId][$eq]", planID).
		SetResult(&payload).
		Get("/api/subscription-plans")
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch subscription plan")
	}
	if resp.StatusCode() != http.StatusOK {
		return "", pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("cms returned %d for plan lookup", resp.StatusCode()))
	}
	if len(payload.Data) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("plan %q has no cms entry", planID))
	}
	priceID, _ := payload.Data[0].Attributes["stripePriceId"].(string)
	if priceID == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("plan %q has no stripe price id", planID))
	}
	return priceID, nil
}

// EbookAsset returns the display name and media URL of a gated ebook.
func (c *Client) EbookAsset(ctx context.Context, slug string) (name, url string, err error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "product slug is required")
	}

	var payload entryList
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("filters[slug][$eq]", slug).
		SetQueryParam("populate", "ebook").
		SetResult(&payload).
		Get("/api/products")
	if err != nil {
		return "", "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch product")
	}
	if resp.StatusCode() != http.StatusOK {
		return "", "", pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("cms returned %d for product lookup", resp.StatusCode()))
	}
	if len(payload.Data) == 0 {
		return "", "", pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %q not found", slug))
	}

	attrs := payload.Data[0].Attributes
	name, _ = attrs["name"].(string)
	url = mediaURL(attrs["ebook"])
	if url == "" {
		return "", "", pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %q has no ebook media", slug))
	}
	if strings.HasPrefix(url, "/") {
		url = c.base + url
	}
	return name, url, nil
}

// Stream opens the media file at url for proxying to the client. The caller
// must close the returned reader.
func (c *Client) Stream(ctx context.Context, url string) (io.ReadCloser, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch media")
	}
	if resp.StatusCode() != http.StatusOK {
		resp.RawBody().Close()
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("cms returned %d for media fetch", resp.StatusCode()))
	}
	return resp.RawBody(), nil
}

// mediaURL digs the url out of Strapi's nested media relation shape:
// {"data":{"attributes":{"url":"/uploads/..."}}}
func mediaURL(value any) string {
	rel, ok := value.(map[string]any)
	if !ok {
		return ""
	}
	data, ok := rel["data"].(map[string]any)
	if !ok {
		return ""
	}
	attrs, ok := data["attributes"].(map[string]any)
	if !ok {
		return ""
	}
	url, _ := attrs["url"].(string)
	return url
}
