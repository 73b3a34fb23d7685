package client

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/projectatomic/osbs-go/pkg/build"
	"github.com/projectatomic/osbs-go/pkg/transport"
	"github.com/projectatomic/osbs-go/pkg/watch"
)

// WatchResource opens a watch over a resource collection, or a single
// named resource of it, and keeps it open across server disconnects.
// The caller ends the watch by cancelling ctx or calling Stop.
func (o *Openshift) WatchResource(ctx context.Context, resource, name string, query url.Values) watch.Watcher {
	id := watch.Identity{Namespace: o.namespace, Resource: resource, Name: name}
	u := joinURL(o.apiURL, id.Path(), query)

	dial := func(ctx context.Context) (*transport.Response, error) {
		opt := transport.Options{
			Stream: true,
			// Keep-alive semantics are ambiguous for chunked
			// watch streams; ask for a fresh connection.
			Headers: http.Header{"Connection": []string{"close"}},
		}
		opt, err := o.requestOptions(ctx, true, opt)
		if err != nil {
			return nil, err
		}
		return o.session.Get(ctx, u, opt)
	}
	return watch.Stream(ctx, dial, watch.Options{ReconnectDelay: o.opts.ReconnectDelay})
}

// Wait blocks until the named build reaches one of the accepted
// phases and returns its document. Events for other builds on the
// same stream are ignored, as are objects missing a name or phase. A
// deletion of the build, or the event stream ending, yields a
// NotFoundError.
func (o *Openshift) Wait(ctx context.Context, buildID string, phases build.PhaseSet) (*unstructured.Unstructured, error) {
	o.logger.Info("watching build", "build", buildID)

	w := o.WatchResource(ctx, "builds", buildID, nil)
	defer w.Stop()

	for ev := range w.ResultChan() {
		name, found, _ := unstructured.NestedString(ev.Object.Object, "metadata", "name")
		if !found {
			o.logger.Error("watch object has no name", "type", ev.Type)
			continue
		}
		if name != buildID {
			o.logger.Debug("ignoring event for other build", "build", name)
			continue
		}
		if ev.Type == watch.Deleted {
			o.logger.Error("build deleted while waiting", "build", buildID)
			return nil, &NotFoundError{Resource: "build", Name: buildID}
		}

		phase, found, _ := unstructured.NestedString(ev.Object.Object, "status", "phase")
		if !found {
			o.logger.Error("watch object has no status", "build", name)
			continue
		}
		o.logger.Info("build has changed", "type", ev.Type, "build", name, "phase", phase)
		if phases.Contains(phase) {
			return ev.Object, nil
		}
	}

	if err := ctx.Err(); err != nil {
		o.logger.Debug("wait ended", "build", buildID, "cause", err)
	}
	return nil, &NotFoundError{Resource: "build", Name: buildID}
}

// WaitForBuildToFinish blocks until the build reaches a terminal
// phase. Spurious not-found results right after creation are a known
// server-side race, so the wait is retried a bounded number of times
// before giving up with a WaitError.
func (o *Openshift) WaitForBuildToFinish(ctx context.Context, buildID string) (*unstructured.Unstructured, error) {
	for attempt := 1; attempt <= o.opts.NotFoundRetries; attempt++ {
		obj, err := o.Wait(ctx, buildID, build.FinishedPhases())
		if err == nil {
			return obj, nil
		}
		var notFound *NotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		o.logger.Error("build not found while waiting, trying again", "build", buildID, "attempt", attempt)
	}
	return nil, &WaitError{Name: buildID, Attempts: o.opts.NotFoundRetries}
}

// WaitForBuildToGetScheduled blocks until the build has left the
// pending queue: it is running or already finished. Used before
// attempting to stream logs, which the server rejects for builds
// that have not started.
func (o *Openshift) WaitForBuildToGetScheduled(ctx context.Context, buildID string) (*unstructured.Unstructured, error) {
	return o.Wait(ctx, buildID, build.FinishedPhases().Union(build.RunningPhases()))
}

// WaitForNewBuildConfigInstance blocks until the build config's
// lastVersion moves past prevVersion and returns the name of the
// build that instantiation created.
func (o *Openshift) WaitForNewBuildConfigInstance(ctx context.Context, buildConfigID string, prevVersion int64) (string, error) {
	o.logger.Info("waiting for build config to get instantiated", "buildconfig", buildConfigID)

	w := o.WatchResource(ctx, "buildconfigs", buildConfigID, nil)
	defer w.Stop()

	for ev := range w.ResultChan() {
		switch ev.Type {
		case watch.Modified:
			version, ok := nestedInteger(ev.Object.Object, "status", "lastVersion")
			if !ok {
				o.logger.Error("build config has unexpected lastVersion", "buildconfig", buildConfigID)
				continue
			}
			if version > prevVersion {
				return fmt.Sprintf("%s-%d", buildConfigID, version), nil
			}
		case watch.Deleted:
			o.logger.Error("build config deleted while waiting for new build instance", "buildconfig", buildConfigID)
			return "", &transport.ResponseError{StatusCode: http.StatusNotFound, Body: "new BuildConfig instance not found"}
		}
	}

	return "", &transport.ResponseError{StatusCode: http.StatusNotFound, Body: "new BuildConfig instance not found"}
}

// nestedInteger reads an integral number out of a decoded JSON
// document. JSON numbers arrive as float64; values with a fractional
// part are rejected.
func nestedInteger(obj map[string]any, fields ...string) (int64, bool) {
	v, found, err := unstructured.NestedFieldNoCopy(obj, fields...)
	if !found || err != nil {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		if n == math.Trunc(n) {
			return int64(n), true
		}
	}
	return 0, false
}
