package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/akozyrev/factstack/internal/core/domain"
)

type documentRepoFake struct {
	created   []*domain.Document
	docs      map[string]*domain.Document
	statuses  []domain.DocumentStatus
	indexed   bool
	createErr error
	statusErr error
}

func (f *documentRepoFake) Create(_ context.Context, doc *domain.Document) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, doc)
	return nil
}

func (f *documentRepoFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return doc, nil
}

func (f *documentRepoFake) UpdateStatus(_ context.Context, _ string, status domain.DocumentStatus, _ string) error {
	if f.statusErr != nil {
		return f.statusErr
	}
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *documentRepoFake) SaveIndexed(_ context.Context, _, _ string, _ int) error {
	f.indexed = true
	return nil
}

type objectStorageFake struct {
	saved map[string][]byte
	err   error
}

func (f *objectStorageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if f.saved == nil {
		f.saved = map[string][]byte{}
	}
	f.saved[key] = b
	return nil
}

func (f *objectStorageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	b, ok := f.saved[key]
	if !ok {
		return nil, errors.New("no such object")
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

type queueFake struct {
	published []string
	err       error
}

func (f *queueFake) PublishDocumentIngested(_ context.Context, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, documentID)
	return nil
}

func (f *queueFake) SubscribeDocumentIngested(context.Context, func(context.Context, string) error) error {
	return nil
}

func TestUploadStoresAndPublishes(t *testing.T) {
	repo := &documentRepoFake{}
	storage := &objectStorageFake{}
	queue := &queueFake{}
	uc := NewIngestUseCase(repo, storage, queue, testLogger())

	doc, err := uc.Upload(context.Background(), "notes.md", "text/markdown", strings.NewReader("# Title"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.ID == "" {
		t.Fatalf("expected generated document id")
	}
	if doc.Status != domain.StatusUploaded {
		t.Fatalf("expected uploaded status, got %s", doc.Status)
	}
	if doc.StoragePath != doc.ID+".md" {
		t.Fatalf("unexpected storage path %q", doc.StoragePath)
	}
	if _, ok := storage.saved[doc.StoragePath]; !ok {
		t.Fatalf("file was not stored")
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected 1 created record, got %d", len(repo.created))
	}
	if len(queue.published) != 1 || queue.published[0] != doc.ID {
		t.Fatalf("expected ingestion event for %s, got %v", doc.ID, queue.published)
	}
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	uc := NewIngestUseCase(&documentRepoFake{}, &objectStorageFake{}, &queueFake{}, testLogger())

	_, err := uc.Upload(context.Background(), "image.png", "image/png", strings.NewReader("x"))
	if err == nil {
		t.Fatalf("expected error for unsupported extension")
	}
	if !errors.Is(err, domain.ErrNotSupported) {
		t.Fatalf("expected ErrNotSupported, got %v", err)
	}
}

func TestUploadStripsDirectoryFromFilename(t *testing.T) {
	repo := &documentRepoFake{}
	uc := NewIngestUseCase(repo, &objectStorageFake{}, &queueFake{}, testLogger())

	doc, err := uc.Upload(context.Background(), "../../etc/passwd.txt", "text/plain", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.Filename != "passwd.txt" {
		t.Fatalf("expected base filename, got %q", doc.Filename)
	}
}

func TestUploadSucceedsWhenPublishFails(t *testing.T) {
	repo := &documentRepoFake{}
	queue := &queueFake{err: errors.New("broker down")}
	uc := NewIngestUseCase(repo, &objectStorageFake{}, queue, testLogger())

	doc, err := uc.Upload(context.Background(), "notes.txt", "text/plain", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("publish failure must not fail the upload, got %v", err)
	}
	if len(repo.created) != 1 || doc.ID == "" {
		t.Fatalf("expected stored document despite publish failure")
	}
}

func TestUploadStorageFailure(t *testing.T) {
	storage := &objectStorageFake{err: errors.New("disk full")}
	uc := NewIngestUseCase(&documentRepoFake{}, storage, &queueFake{}, testLogger())

	if _, err := uc.Upload(context.Background(), "notes.txt", "text/plain", strings.NewReader("x")); err == nil {
		t.Fatalf("expected storage error")
	}
}
