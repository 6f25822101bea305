package github

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

const pageLength = 100

// pageIterator walks a paged GitHub REST collection, following the
// rel="next" entry of the Link header.
type pageIterator[T any] struct {
	Client     *Client
	RequestURL string
	Query      map[string]string
	Parse      func(value gjson.Result) (T, error)
	hasNext    bool
	nextURL    string
}

type newPageIteratorOptions[T any] struct {
	// Client is the github client
	Client *Client
	// RequestURL is the url of the first page
	RequestURL string
	// Query holds extra query parameters sent with the first page
	Query map[string]string
	// Parse converts a single element of a page
	Parse func(value gjson.Result) (T, error)
}

func newPageIterator[T any](options *newPageIteratorOptions[T]) *pageIterator[T] {
	return &pageIterator[T]{
		Client:     options.Client,
		RequestURL: options.RequestURL,
		Query:      options.Query,
		Parse:      options.Parse,
		hasNext:    true,
	}
}

func (i *pageIterator[T]) HasNext() bool {
	return i.hasNext
}

// GetAll returns the values of every page.
func (i *pageIterator[T]) GetAll(ctx context.Context) ([]T, error) {
	result := []T{}
	for i.HasNext() {
		list, err := i.Next(ctx)
		if err != nil {
			return nil, err
		}

		result = append(result, list...)
	}

	return result, nil
}

// Count returns the number of elements across every page.
func (i *pageIterator[T]) Count(ctx context.Context) (int, error) {
	n := 0
	for i.HasNext() {
		list, err := i.Next(ctx)
		if err != nil {
			return 0, err
		}

		n += len(list)
	}

	return n, nil
}

func (i *pageIterator[T]) Next(ctx context.Context) ([]T, error) {
	if !i.hasNext {
		return nil, nil
	}

	if i.nextURL == "" {
		return i.doInitialCall(ctx)
	}

	return i.doNextCall(ctx)
}

func (i *pageIterator[T]) doInitialCall(ctx context.Context) ([]T, error) {
	r := i.Client.request(ctx).
		SetQueryParam("per_page", fmt.Sprint(pageLength)).
		SetQueryParams(i.Query)

	return i.sendRequest(ctx, r, i.RequestURL)
}

func (i *pageIterator[T]) doNextCall(ctx context.Context) ([]T, error) {
	return i.sendRequest(ctx, i.Client.request(ctx), i.nextURL)
}

func (i *pageIterator[T]) sendRequest(ctx context.Context, request *resty.Request, url string) ([]T, error) {
	r, err := i.Client.get(ctx, request, url)
	if err != nil {
		return nil, err
	}

	i.nextURL = nextLink(r.Header().Get("Link"))
	if i.nextURL == "" {
		i.hasNext = false
	}

	return i.parse(gjson.ParseBytes(r.Body()))
}

func (i *pageIterator[T]) parse(parsed gjson.Result) ([]T, error) {
	list := []T{}

	var err error
	parsed.ForEach(func(_, value gjson.Result) bool {
		var obj T
		obj, err = i.Parse(value)
		if err != nil {
			return false
		}

		list = append(list, obj)
		return true
	})
	if err != nil {
		return nil, err
	}

	return list, nil
}

// nextLink extracts the rel="next" url of a Link header.
func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		sections := strings.Split(part, ";")
		if len(sections) < 2 {
			continue
		}

		for _, attr := range sections[1:] {
			if strings.TrimSpace(attr) == `rel="next"` {
				return strings.Trim(strings.TrimSpace(sections[0]), "<>")
			}
		}
	}

	return ""
}
