package research

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const arxivFeedFixture = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title type="html">ArXiv Query: search_query=all:profiling</title>
  <entry>
    <id>http://arxiv.org/abs/2401.00001v1</id>
    <title>Continuous Profiling
      in Production Systems</title>
    <summary>  We present a low-overhead approach
      to continuous profiling.  </summary>
    <author><name>Ada Lovelace</name></author>
    <author><name>Edsger Dijkstra</name></author>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2401.00002v2</id>
    <title>Sampling Profilers Revisited</title>
    <summary>A study of sampling bias.</summary>
    <author><name>Barbara Liskov</name></author>
  </entry>
</feed>`

func TestArxivSearcher(t *testing.T) {
	t.Run("parses entries from the atom feed", func(t *testing.T) {
		var gotQuery string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.Query().Get("search_query")
			require.Equal(t, "3", r.URL.Query().Get("max_results"))
			w.Header().Set("Content-Type", "application/atom+xml")
			_, _ = w.Write([]byte(arxivFeedFixture))
		}))
		defer server.Close()

		searcher := NewArxivSearcher(server.Client())
		searcher.baseURL = server.URL

		papers, err := searcher.Search(context.Background(), "profiling", 3)
		require.NoError(t, err)
		require.Equal(t, "all:profiling", gotQuery)
		require.Len(t, papers, 2)

		require.Equal(t, "Continuous Profiling in Production Systems", papers[0].Title)
		require.Equal(t, "http://arxiv.org/abs/2401.00001v1", papers[0].URL)
		require.Equal(t, "We present a low-overhead approach to continuous profiling.", papers[0].Summary)
		require.Equal(t, []string{"Ada Lovelace", "Edsger Dijkstra"}, papers[0].Authors)

		require.Equal(t, "Sampling Profilers Revisited", papers[1].Title)
		require.Equal(t, []string{"Barbara Liskov"}, papers[1].Authors)
	})

	t.Run("non-200 response is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "slow down", http.StatusTooManyRequests)
		}))
		defer server.Close()

		searcher := NewArxivSearcher(server.Client())
		searcher.baseURL = server.URL

		_, err := searcher.Search(context.Background(), "profiling", 3)
		require.Error(t, err)
		require.Contains(t, err.Error(), "429")
	})

	t.Run("empty feed yields no papers", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<?xml version="1.0"?><feed xmlns="http://www.w3.org/2005/Atom"></feed>`))
		}))
		defer server.Close()

		searcher := NewArxivSearcher(server.Client())
		searcher.baseURL = server.URL

		papers, err := searcher.Search(context.Background(), "nothing", 3)
		require.NoError(t, err)
		require.Empty(t, papers)
	})
}
