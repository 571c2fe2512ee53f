package cyclonedx

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/quay/zlog"

	"github.com/fepas/cachito"
	"github.com/fepas/cachito/contentmanifest"
)

func testManifest() *contentmanifest.ContentManifest {
	req := &cachito.Request{
		Repo: "https://github.com/org/repo-name.git",
		Ref:  "58c88e4952e95935c5dd72d4a24b0c44f2249f5b",
	}
	pkgs := []*cachito.Package{
		{
			Name: "grc-ui", Type: cachito.NPM, Version: "1.0.0",
			Dependencies: []*cachito.Package{
				{Name: "fecha", Type: cachito.NPM, Version: "4.2.0"},
			},
		},
	}
	return contentmanifest.New(req, pkgs)
}

func TestEncode(t *testing.T) {
	t.Parallel()
	ctx := zlog.Test(context.Background(), t)

	var buf bytes.Buffer
	if err := NewDefaultEncoder().Encode(ctx, &buf, testManifest()); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var got Document
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	want := Document{
		BOMFormat:   "CycloneDX",
		SpecVersion: "1.4",
		Version:     1,
		Components: []contentmanifest.Component{
			{
				Type: "library", Name: "grc-ui", Version: "1.0.0",
				Purl: "pkg:github/org/repo-name@58c88e4952e95935c5dd72d4a24b0c44f2249f5b",
			},
			{
				Type: "library", Name: "fecha", Version: "4.2.0",
				Purl: "pkg:npm/fecha@4.2.0",
			},
		},
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Fatalf("document mismatch (-got +want):\n%s", diff)
	}
}

func TestEncodeOptions(t *testing.T) {
	t.Parallel()
	ctx := zlog.Test(context.Background(), t)

	var buf bytes.Buffer
	enc := NewDefaultEncoder(WithSerialNumber(), WithVersion(3))
	if err := enc.Encode(ctx, &buf, testManifest()); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var got Document
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Version != 3 {
		t.Errorf("got version %d, want 3", got.Version)
	}
	if !strings.HasPrefix(got.SerialNumber, "urn:uuid:") {
		t.Fatalf("serial number %q is not a uuid urn", got.SerialNumber)
	}
	if _, err := uuid.Parse(strings.TrimPrefix(got.SerialNumber, "urn:uuid:")); err != nil {
		t.Errorf("serial number %q: %v", got.SerialNumber, err)
	}
}
