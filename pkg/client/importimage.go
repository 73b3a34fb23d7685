package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/projectatomic/osbs-go/pkg/transport"
	"github.com/projectatomic/osbs-go/pkg/watch"
)

// dockerRepositoryCheckAnnotation, when blanked, tells the server the
// image stream needs a fresh registry import; the server stamps it
// with a timestamp once the import ran.
const dockerRepositoryCheckAnnotation = "openshift.io/image.dockerRepositoryCheck"

// ImportImage asks the cluster to re-import the tags of an image
// stream from its Docker registry and reports whether new tags
// appeared.
func (o *Openshift) ImportImage(ctx context.Context, name string) (bool, error) {
	stream, err := o.GetImageStream(ctx, name)
	if err != nil {
		return false, err
	}
	o.logger.Debug("imagestream fetched", "name", name)

	repo, found, _ := unstructured.NestedString(stream.Object, "spec", "dockerImageRepository")
	if !found || repo == "" {
		return false, fmt.Errorf("no dockerImageRepository for image import")
	}

	oldTags, _, _ := unstructured.NestedSlice(stream.Object, "status", "tags")
	o.logger.Debug("tags before import", "count", len(oldTags))

	// Mark it as needing import.
	if err := unstructured.SetNestedField(stream.Object, "", "metadata", "annotations", dockerRepositoryCheckAnnotation); err != nil {
		return false, err
	}
	body, err := json.Marshal(stream.Object)
	if err != nil {
		return false, err
	}
	streamURL := o.buildURL(fmt.Sprintf("imagestreams/%s", name), nil)
	resp, err := o.put(ctx, streamURL, transport.Options{Body: body, JSON: true})
	if err != nil {
		return false, err
	}
	if err := checkResponse(resp); err != nil {
		return false, err
	}

	// Watch for the server to finish the import, resuming from the
	// version we just read to avoid replaying older changes.
	resourceVersion, _, _ := unstructured.NestedString(stream.Object, "metadata", "resourceVersion")
	query := url.Values{}
	if resourceVersion != "" {
		query.Set("resourceVersion", resourceVersion)
	}
	w := o.WatchResource(ctx, "imagestreams", name, query)
	defer w.Stop()

	for ev := range w.ResultChan() {
		o.logger.Info("imagestream changed", "type", ev.Type)
		switch ev.Type {
		case watch.Deleted:
			o.logger.Info("watched imagestream was deleted", "name", name)
			return false, nil
		case watch.Error:
			o.logger.Error("error watching imagestream", "name", name)
			return false, nil
		case watch.Modified:
			annotation, _, _ := unstructured.NestedString(ev.Object.Object, "metadata", "annotations", dockerRepositoryCheckAnnotation)
			if annotation == "" {
				continue
			}
			o.logger.Info("imagestream updated", "name", name)
			newTags, _, _ := unstructured.NestedSlice(ev.Object.Object, "status", "tags")
			o.logger.Debug("tags after import", "count", len(newTags))
			return !reflect.DeepEqual(oldTags, newTags), nil
		}
	}

	return false, ctx.Err()
}
