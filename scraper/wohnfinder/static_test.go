package wohnfinder

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"flatwatch/models"
	"flatwatch/utils"
)

const testPage = `<!DOCTYPE html>
<html><body><ul>
	<li class="tb-merkflat" id="flat_1">
		2 Zimmer, 54,83 m², 512,43 €, Musterstraße 12
		<span class="hackerl">Balkon/Loggia/Terrasse</span>
		<a class="org-but" href="/angebot/1">zum Angebot</a>
		<a title="Wohnberechtigungsschein">WBS</a>
	</li>
	<li class="tb-merkflat" id="flat_2">
		1 Zimmer, 30,00 m², 400,00 €
	</li>
	<li class="other">not a listing</li>
</ul></body></html>`

func TestStaticFetcherParsesItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(testPage))
	}))
	defer srv.Close()

	f := NewStaticFetcher(srv.URL, 5*time.Second, utils.NewLogger())
	items, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items: got %d, want 2", len(items))
	}

	first := items[0]
	if first.Attr("id") != "flat_1" {
		t.Errorf("id: got %q", first.Attr("id"))
	}

	balcony := first.Find(balconySelector)
	if len(balcony) != 1 || balcony[0].Text() != balconyMarker {
		t.Errorf("balcony sub-element: got %v", balcony)
	}

	links := first.Find(linkSelector)
	if len(links) != 1 {
		t.Fatalf("link sub-elements: got %d", len(links))
	}
	if got := links[0].Attr("href"); got != srv.URL+"/angebot/1" {
		t.Errorf("href should resolve against the base URL, got %q", got)
	}

	if len(first.Find(permitSelector)) != 1 {
		t.Error("permit marker should be found by attribute selector")
	}

	second := items[1]
	if second.Text() != "1 Zimmer, 30,00 m², 400,00 €" {
		t.Errorf("text: got %q", second.Text())
	}
	if len(second.Find(balconySelector)) != 0 {
		t.Error("flat_2 has no balcony marker")
	}
}

func TestStaticFetcherTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	f := NewStaticFetcher(srv.URL, 50*time.Millisecond, utils.NewLogger())
	_, err := f.Fetch(context.Background())

	var timeout *models.FetchTimeoutError
	if !errors.As(err, &timeout) {
		t.Errorf("got %v, want FetchTimeoutError", err)
	}
}

func TestStaticFetcherBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := NewStaticFetcher(srv.URL, time.Second, utils.NewLogger())
	if _, err := f.Fetch(context.Background()); err == nil {
		t.Error("non-200 response must error")
	}
}
