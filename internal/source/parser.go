package source

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/fjod/go_cart/upsell-service/internal/domain"
	"golang.org/x/net/html"
)

const (
	itemClass        = "cart-drawer-upsell__item"
	cardWrapperClass = "card-wrapper"
	productIDAttr    = "data-product-id"
	priceAttr        = "data-price"
)

var leadingNumber = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?`)

// ParseRecommendations extracts candidates from a rendered recommendations
// section. Every upsell item must carry a card wrapper with a product id;
// a missing price is not an error.
func ParseRecommendations(r io.Reader) ([]domain.Recommendation, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: parse document: %v", domain.ErrMalformedResponse, err)
	}

	var recs []domain.Recommendation
	var walkErr error
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if walkErr != nil {
			return
		}
		if n.Type == html.ElementNode && hasClass(n, itemClass) {
			rec, err := parseItem(n)
			if err != nil {
				walkErr = err
				return
			}
			recs = append(recs, rec)
			// items are not nested inside items
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if walkErr != nil {
		return nil, walkErr
	}
	return recs, nil
}

func parseItem(n *html.Node) (domain.Recommendation, error) {
	wrapper := findFirst(n, func(c *html.Node) bool { return hasClass(c, cardWrapperClass) })
	if wrapper == nil {
		return domain.Recommendation{}, fmt.Errorf("%w: item without %s", domain.ErrMalformedResponse, cardWrapperClass)
	}
	id := strings.TrimSpace(getAttr(wrapper, productIDAttr))
	if id == "" {
		return domain.Recommendation{}, fmt.Errorf("%w: item without %s", domain.ErrMalformedResponse, productIDAttr)
	}

	var price float64
	if priced := findFirst(n, func(c *html.Node) bool { _, ok := lookupAttr(c, priceAttr); return ok }); priced != nil {
		price = ParsePrice(getAttr(priced, priceAttr))
	}

	payload, err := innerHTML(n)
	if err != nil {
		return domain.Recommendation{}, fmt.Errorf("%w: render item %s: %v", domain.ErrMalformedResponse, id, err)
	}

	return domain.Recommendation{
		ID:      id,
		Price:   price,
		Payload: payload,
	}, nil
}

// ParsePrice reads the leading decimal number of s, so "12.50 USD" is 12.5.
// Anything without a leading number is 0.
func ParsePrice(s string) float64 {
	m := leadingNumber.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return v
}

// findFirst returns the first descendant of n (depth first, n excluded)
// matching pred.
func findFirst(n *html.Node, pred func(*html.Node) bool) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && pred(c) {
			return c
		}
		if found := findFirst(c, pred); found != nil {
			return found
		}
	}
	return nil
}

func innerHTML(n *html.Node) (string, error) {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(getAttr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func getAttr(n *html.Node, key string) string {
	v, _ := lookupAttr(n, key)
	return v
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
