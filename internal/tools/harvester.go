package tools

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/raysh454/sift/internal/logging"
	"github.com/raysh454/sift/internal/model"
	"github.com/raysh454/sift/internal/utils"
	"github.com/raysh454/sift/internal/webclient"
)

var (
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	hostRe  = regexp.MustCompile(`(?i)\b(?:[a-z0-9](?:[a-z0-9\-]{0,61}[a-z0-9])?\.)+[a-z]{2,63}\b`)
)

// HarvesterAdapter gathers emails and subdomains of a domain from a
// search-engine HTML results page, in the manner of theHarvester.
type HarvesterAdapter struct {
	service
}

func NewHarvesterAdapter(cfg ToolConfig, wc webclient.WebClient, logger logging.Logger) *HarvesterAdapter {
	return &HarvesterAdapter{service: newService(Harvester, []model.TargetType{model.TargetDomain}, cfg, wc, logger)}
}

// HarvestResult is the data payload of a completed harvester run.
type HarvestResult struct {
	Emails []string `json:"emails"`
	Hosts  []string `json:"hosts"`
}

func (h *HarvesterAdapter) Invoke(ctx context.Context, inv Invocation) model.ToolResult {
	if skip, ok := h.precheck(inv); ok {
		return skip
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout())
	defer cancel()

	inv.emit(model.ProgressRunning, "Harvesting search results...")

	q := url.Values{}
	q.Set("q", "site:"+inv.Target)
	req := &webclient.Request{
		Method:  http.MethodGet,
		URL:     h.baseURL + "?" + q.Encode(),
		Headers: http.Header{},
	}
	req.Headers.Set("Accept", "text/html")

	resp, err := h.do(ctx, req)
	if err != nil {
		return h.fail(ctx, err)
	}

	res, err := ExtractHarvest(resp.Body, inv.Target)
	if err != nil {
		return h.fail(ctx, err)
	}

	h.logger.Info("harvest complete",
		logging.Field{Key: "emails", Value: len(res.Emails)},
		logging.Field{Key: "hosts", Value: len(res.Hosts)})
	return model.Completed(h.name, len(res.Emails)+len(res.Hosts), res)
}

// ExtractHarvest parses a results page and returns the unique emails at
// domain and the unique hosts below it, sorted.
func ExtractHarvest(body []byte, domain string) (HarvestResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return HarvestResult{}, fmt.Errorf("parse results page: %w", err)
	}

	emails := map[string]struct{}{}
	hosts := map[string]struct{}{}

	addHost := func(host string) {
		host = strings.TrimSuffix(strings.ToLower(host), ".")
		if host != "" && host != domain && utils.IsSubdomainOf(host, domain) {
			hosts[host] = struct{}{}
		}
	}
	scanText := func(text string) {
		for _, e := range emailRe.FindAllString(text, -1) {
			e = strings.ToLower(e)
			if at := strings.LastIndexByte(e, '@'); at > 0 && utils.IsSubdomainOf(e[at+1:], domain) {
				emails[e] = struct{}{}
			}
		}
		for _, hst := range hostRe.FindAllString(text, -1) {
			addHost(hst)
		}
	}

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		if host := resultHost(getAttr(sel, "href")); host != "" {
			addHost(host)
		}
		if strings.HasPrefix(getAttr(sel, "href"), "mailto:") {
			scanText(strings.TrimPrefix(getAttr(sel, "href"), "mailto:"))
		}
	})
	doc.Find(".result__snippet, .result__url, .result__title").Each(func(_ int, sel *goquery.Selection) {
		scanText(sel.Text())
	})

	return HarvestResult{Emails: sortedKeys(emails), Hosts: sortedKeys(hosts)}, nil
}

// resultHost returns the host a result link points at, unwrapping search
// engine redirect links that carry the destination in a uddg parameter.
func resultHost(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if dest := u.Query().Get("uddg"); dest != "" {
		if du, err := url.Parse(dest); err == nil {
			return du.Hostname()
		}
	}
	return u.Hostname()
}

func getAttr(sel *goquery.Selection, name string) string {
	if v, ok := sel.Attr(name); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
