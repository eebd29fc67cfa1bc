// Scholarly search via OpenAlex
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const openAlexEndpoint = "https://api.openalex.org/works"

// Author of a work, with the first listed affiliation.
type Author struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
}

// Work is the trimmed OpenAlex record handed to the model.
type Work struct {
	Title    string   `json:"title"`
	Authors  []Author `json:"authors"`
	Abstract string   `json:"abstract,omitempty"`
}

// PaperClient searches OpenAlex works.
type PaperClient struct {
	http     *HTTPClient
	email    string
	endpoint string
}

func NewPaperClient(hc *HTTPClient, email, endpoint string) *PaperClient {
	if endpoint == "" {
		endpoint = openAlexEndpoint
	}
	return &PaperClient{http: hc, email: email, endpoint: endpoint}
}

type openAlexWork struct {
	DisplayName string `json:"display_name"`
	Authorships []struct {
		RawAuthorName string `json:"raw_author_name"`
		Author        struct {
			DisplayName string `json:"display_name"`
		} `json:"author"`
		Institutions []struct {
			DisplayName string `json:"display_name"`
		} `json:"institutions"`
	} `json:"authorships"`
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
}

// Search returns one page of works matching query.
func (c *PaperClient) Search(ctx context.Context, query string, perPage, page int) ([]Work, error) {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	q := url.Values{}
	q.Set("search", query)
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("page", strconv.Itoa(page))
	if c.email != "" {
		q.Set("mailto", c.email)
	}

	resp, err := c.http.get(ctx, "GET", c.endpoint+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("openalex %q: %w", query, err)
	}
	defer resp.Body.Close()

	var parsed struct {
		Results []openAlexWork `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("openalex %q: decode: %w", query, err)
	}
	works := make([]Work, 0, len(parsed.Results))
	for _, item := range parsed.Results {
		works = append(works, parseWork(item))
	}
	return works, nil
}

func parseWork(item openAlexWork) Work {
	w := Work{
		Title:    item.DisplayName,
		Authors:  make([]Author, 0, len(item.Authorships)),
		Abstract: ReconstructAbstract(item.AbstractInvertedIndex),
	}
	for _, a := range item.Authorships {
		name := a.RawAuthorName
		if name == "" {
			name = a.Author.DisplayName
		}
		author := Author{Name: name}
		if len(a.Institutions) > 0 {
			author.Affiliation = a.Institutions[0].DisplayName
		}
		w.Authors = append(w.Authors, author)
	}
	return w
}

// ReconstructAbstract turns an OpenAlex inverted index back into text.
func ReconstructAbstract(index map[string][]int) string {
	if len(index) == 0 {
		return ""
	}
	type token struct {
		pos  int
		word string
	}
	var tokens []token
	for word, positions := range index {
		for _, pos := range positions {
			tokens = append(tokens, token{pos, word})
		}
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].pos < tokens[j].pos })
	words := make([]string, len(tokens))
	for i, t := range tokens {
		words[i] = t.word
	}
	return strings.Join(words, " ")
}

type paperQuery struct {
	Query string `json:"query"`
}

// Tool exposes the client as search_papers, returning JSON text.
func (c *PaperClient) Tool() Tool {
	return MustFunc("search_papers", `Search academic papers; returns title, authors and abstract.

Args:
    query: search keywords`,
		func(ctx context.Context, q paperQuery) (string, error) {
			works, err := c.Search(ctx, q.Query, 10, 1)
			if err != nil {
				return "", err
			}
			b, err := json.Marshal(works)
			if err != nil {
				return "", err
			}
			return string(b), nil
		})
}
