package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/projectatomic/osbs-go/pkg/build"
	"github.com/projectatomic/osbs-go/pkg/transport"
)

func watchHandler(t *testing.T, wantPath string, lines func(r *http.Request) []string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if wantPath != "" && r.URL.Path != wantPath {
			t.Errorf("unexpected path %q, want %q", r.URL.Path, wantPath)
		}
		flusher := w.(http.Flusher)
		for _, line := range lines(r) {
			fmt.Fprint(w, line)
			flusher.Flush()
		}
	}
}

func TestWaitReturnsOnFinishedPhase(t *testing.T) {
	srv := httptest.NewServer(watchHandler(t,
		"/oapi/v1/watch/namespaces/test/builds/osbs-1/",
		func(*http.Request) []string {
			return []string{
				watchLine("MODIFIED", "osbs-1", "Pending"),
				watchLine("MODIFIED", "osbs-1", "Running"),
				"not json at all\n",
				watchLine("MODIFIED", "osbs-1", "Complete"),
			}
		}))
	defer srv.Close()

	obj, err := newTestClient(srv.URL, Options{}).Wait(context.Background(), "osbs-1", build.FinishedPhases())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	phase, _, _ := unstructured.NestedString(obj.Object, "status", "phase")
	if phase != "Complete" {
		t.Errorf("got phase %q, want Complete", phase)
	}
}

func TestWaitIgnoresOtherBuilds(t *testing.T) {
	srv := httptest.NewServer(watchHandler(t, "", func(*http.Request) []string {
		return []string{
			watchLine("MODIFIED", "other-build", "Complete"),
			watchLine("MODIFIED", "osbs-1", "Failed"),
		}
	}))
	defer srv.Close()

	obj, err := newTestClient(srv.URL, Options{}).Wait(context.Background(), "osbs-1", build.FinishedPhases())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obj.GetName() != "osbs-1" {
		t.Errorf("got build %q, want osbs-1", obj.GetName())
	}
}

func TestWaitMatchesPhaseCaseInsensitively(t *testing.T) {
	srv := httptest.NewServer(watchHandler(t, "", func(*http.Request) []string {
		return []string{watchLine("MODIFIED", "osbs-1", "COMPLETE")}
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, Options{}).Wait(context.Background(), "osbs-1", build.FinishedPhases())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWaitDeletedBuildIsNotFound(t *testing.T) {
	srv := httptest.NewServer(watchHandler(t, "", func(*http.Request) []string {
		return []string{watchLine("DELETED", "osbs-1", "Running")}
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, Options{}).Wait(context.Background(), "osbs-1", build.FinishedPhases())

	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestWaitForBuildToFinishRetriesNotFound(t *testing.T) {
	var dials atomic.Int32
	srv := httptest.NewServer(watchHandler(t, "", func(*http.Request) []string {
		dials.Add(1)
		return []string{watchLine("DELETED", "osbs-1", "")}
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, Options{}).WaitForBuildToFinish(context.Background(), "osbs-1")

	var waitErr *WaitError
	if !errors.As(err, &waitErr) {
		t.Fatalf("expected WaitError, got %v", err)
	}
	if waitErr.Attempts != 9 {
		t.Errorf("got %d attempts, want 9", waitErr.Attempts)
	}
	if got := dials.Load(); got != 9 {
		t.Errorf("watch opened %d times, want 9", got)
	}
}

func TestWaitForBuildToFinishSucceedsAfterRetry(t *testing.T) {
	var dials atomic.Int32
	srv := httptest.NewServer(watchHandler(t, "", func(*http.Request) []string {
		if dials.Add(1) < 3 {
			return []string{watchLine("DELETED", "osbs-1", "")}
		}
		return []string{watchLine("MODIFIED", "osbs-1", "Complete")}
	}))
	defer srv.Close()

	obj, err := newTestClient(srv.URL, Options{}).WaitForBuildToFinish(context.Background(), "osbs-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obj.GetName() != "osbs-1" {
		t.Errorf("got build %q", obj.GetName())
	}
}

func TestWaitForBuildToGetScheduled(t *testing.T) {
	srv := httptest.NewServer(watchHandler(t, "", func(*http.Request) []string {
		return []string{
			watchLine("MODIFIED", "osbs-1", "Pending"),
			watchLine("MODIFIED", "osbs-1", "Running"),
		}
	}))
	defer srv.Close()

	obj, err := newTestClient(srv.URL, Options{}).WaitForBuildToGetScheduled(context.Background(), "osbs-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	phase, _, _ := unstructured.NestedString(obj.Object, "status", "phase")
	if phase != "Running" {
		t.Errorf("got phase %q, want Running", phase)
	}
}

func TestConcurrentWaitAndLogTail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/oapi/v1/watch/"):
			flusher := w.(http.Flusher)
			fmt.Fprint(w, watchLine("MODIFIED", "osbs-1", "Running"))
			flusher.Flush()
			fmt.Fprint(w, watchLine("MODIFIED", "osbs-1", "Complete"))
			flusher.Flush()
		case strings.HasSuffix(r.URL.Path, "/log/"):
			fmt.Fprint(w, "step 1\nstep 2\n")
		}
	}))
	defer srv.Close()

	withAuth := true
	o := New(Config{
		APIURL:    srv.URL + "/oapi/v1/",
		Namespace: "test",
		Auth:      Auth{Token: "sekrit", Enable: &withAuth},
	})

	// The wait and the log tail run on the same client at once, the
	// way start-build --follow drives it.
	var lines []string
	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		_, err := o.WaitForBuildToFinish(ctx, "osbs-1")
		return err
	})
	g.Go(func() error {
		if _, err := o.WaitForBuildToGetScheduled(ctx, "osbs-1"); err != nil {
			return err
		}
		logs := o.StreamLogs(ctx, "osbs-1")
		defer logs.Stop()
		for line := range logs.Lines() {
			lines = append(lines, line)
		}
		return logs.Err()
	})
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 2 || lines[0] != "step 1" {
		t.Errorf("got log lines %v", lines)
	}
}

func configLine(typ, name string, lastVersion any) string {
	return fmt.Sprintf(`{"type":%q,"object":{"metadata":{"name":%q},"status":{"lastVersion":%v}}}`+"\n", typ, name, lastVersion)
}

func TestWaitForNewBuildConfigInstance(t *testing.T) {
	srv := httptest.NewServer(watchHandler(t,
		"/oapi/v1/watch/namespaces/test/buildconfigs/my-config/",
		func(*http.Request) []string {
			return []string{
				configLine("MODIFIED", "my-config", 1),
				configLine("MODIFIED", "my-config", 2),
			}
		}))
	defer srv.Close()

	name, err := newTestClient(srv.URL, Options{}).WaitForNewBuildConfigInstance(context.Background(), "my-config", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "my-config-2" {
		t.Errorf("got build name %q, want my-config-2", name)
	}
}

func TestWaitForNewBuildConfigInstanceSkipsBadVersion(t *testing.T) {
	srv := httptest.NewServer(watchHandler(t, "", func(*http.Request) []string {
		return []string{
			configLine("MODIFIED", "my-config", 2.5),
			configLine("MODIFIED", "my-config", `"three"`),
			configLine("MODIFIED", "my-config", 3),
		}
	}))
	defer srv.Close()

	name, err := newTestClient(srv.URL, Options{}).WaitForNewBuildConfigInstance(context.Background(), "my-config", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "my-config-3" {
		t.Errorf("got build name %q, want my-config-3", name)
	}
}

func TestWaitForNewBuildConfigInstanceDeleted(t *testing.T) {
	srv := httptest.NewServer(watchHandler(t, "", func(*http.Request) []string {
		return []string{configLine("DELETED", "my-config", 1)}
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, Options{}).WaitForNewBuildConfigInstance(context.Background(), "my-config", 1)

	var respErr *transport.ResponseError
	if !errors.As(err, &respErr) {
		t.Fatalf("expected ResponseError, got %v", err)
	}
	if respErr.StatusCode != http.StatusNotFound {
		t.Errorf("got status %d, want 404", respErr.StatusCode)
	}
}
