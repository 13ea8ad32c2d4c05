package finnhub_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/tswhison/ticker/internal/provider"
	"github.com/tswhison/ticker/internal/provider/finnhub"
)

const quoteBody = `{"c":47.08,"d":1.32,"dp":2.8846,"h":47.116,"l":46.02,"o":46.48,"pc":45.76,"t":1703192401}`

func okResponse() *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewBufferString(quoteBody)),
	}
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	client := finnhub.New("test")
	require.NotNil(t, client)
	require.Equal(t, "Finnhub", client.Name())
}

func TestWithBaseURL(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	baseURL := "http://localhost:8080"
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Truef(t, strings.HasPrefix(req.URL.String(), baseURL), "expected url to start with base url, received: %s", req.URL.String())
			return okResponse(), nil
		}).
		Times(1)

	client := finnhub.New("test", finnhub.WithHTTPClient(httpClient), finnhub.WithBaseURL(baseURL))
	_, err := client.FetchAll(context.Background(), []string{"AAPL"})
	require.NoError(t, err)
}

func TestWithHeader(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "bar", req.Header.Get("foo"))
			require.Equal(t, "test", req.Header.Get("X-Finnhub-Token"))
			return okResponse(), nil
		}).
		Times(1)

	client := finnhub.New("test",
		finnhub.WithHTTPClient(httpClient),
		finnhub.WithHeader(http.Header{"foo": []string{"bar"}}))
	_, err := client.FetchAll(context.Background(), []string{"AAPL"})
	require.NoError(t, err)
}

func TestFetchAll_MissingKeyIsAuthError(t *testing.T) {
	t.Parallel()

	client := finnhub.New("")
	_, err := client.FetchAll(context.Background(), []string{"AAPL"})
	require.ErrorIs(t, err, provider.ErrAuth)
}

func TestFetchAll_StatusMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, provider.ErrAuth},
		{http.StatusForbidden, provider.ErrAuth},
		{http.StatusTooManyRequests, provider.ErrRateLimited},
		{http.StatusBadGateway, provider.ErrNetwork},
		{http.StatusTeapot, provider.ErrMalformedResponse},
	}
	for _, tc := range cases {
		ctrl := gomock.NewController(t)
		httpClient := NewMockHTTPClient(ctrl)
		httpClient.EXPECT().
			Do(gomock.Any()).
			Return(&http.Response{
				StatusCode: tc.status,
				Body:       io.NopCloser(bytes.NewBufferString("{}")),
			}, nil).
			Times(1)

		client := finnhub.New("test", finnhub.WithHTTPClient(httpClient))
		_, err := client.FetchAll(context.Background(), []string{"AAPL"})
		require.ErrorIsf(t, err, tc.want, "status %d", tc.status)
	}
}

func TestFetchAll_MalformedBody(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(&http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewBufferString("<html>oops</html>")),
		}, nil).
		Times(1)

	client := finnhub.New("test", finnhub.WithHTTPClient(httpClient))
	_, err := client.FetchAll(context.Background(), []string{"AAPL"})
	require.ErrorIs(t, err, provider.ErrMalformedResponse)
}
