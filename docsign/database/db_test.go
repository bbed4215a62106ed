package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(context.Background(), Config{
		Type: TypeSQLite,
		Path: filepath.Join(t.TempDir(), "gosign.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func ptr[T any](v T) *T {
	return &v
}

func testDocument(title string) Document {
	return Document{
		Title:        title,
		FilePath:     "documents/" + title + ".pdf",
		FileName:     title + ".pdf",
		FileSize:     1024,
		MediaType:    "application/pdf",
		FileChecksum: "checksum",
		PageCount:    3,
		Status:       "draft",
	}
}

func TestDocuments(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	doc, err := db.CreateDocument(ctx, testDocument("contract"))
	require.NoError(t, err)
	assert.Len(t, doc.ID, 8)
	assert.Equal(t, int64(1), doc.Revision)

	got, err := db.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.Title, got.Title)
	assert.Equal(t, 3, got.PageCount)
	assert.Nil(t, got.SignedFilePath)

	_, err = db.GetDocument(ctx, "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	deleted, err := db.DeleteDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.FilePath, deleted.FilePath)

	_, err = db.DeleteDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestListDocuments(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	var ids []string
	for _, title := range []string{"a", "b", "c"} {
		doc, err := db.CreateDocument(ctx, testDocument(title))
		require.NoError(t, err)
		ids = append(ids, doc.ID)
	}
	_, err := db.UpdateDocumentStatus(ctx, StatusUpdate{DocumentID: ids[1], Status: "pending_signature"})
	require.NoError(t, err)

	docs, total, err := db.ListDocuments(ctx, "", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, docs, 2)
	assert.Equal(t, ids[2], docs[0].ID)
	assert.Equal(t, ids[1], docs[1].ID)

	docs, total, err = db.ListDocuments(ctx, "", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, docs, 1)
	assert.Equal(t, ids[0], docs[0].ID)

	docs, total, err = db.ListDocuments(ctx, "pending_signature", 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, docs, 1)
	assert.Equal(t, ids[1], docs[0].ID)
}

func TestUpdateDocumentStatus(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	doc, err := db.CreateDocument(ctx, testDocument("contract"))
	require.NoError(t, err)

	updated, err := db.UpdateDocumentStatus(ctx, StatusUpdate{
		DocumentID:  doc.ID,
		Status:      "pending_signature",
		AllowedFrom: []string{"draft"},
	})
	require.NoError(t, err)
	assert.Equal(t, "pending_signature", updated.Status)
	assert.Equal(t, int64(2), updated.Revision)

	_, err = db.UpdateDocumentStatus(ctx, StatusUpdate{
		DocumentID:  doc.ID,
		Status:      "pending_signature",
		AllowedFrom: []string{"draft"},
	})
	assert.ErrorIs(t, err, ErrDocumentChanged)

	_, err = db.UpdateDocumentStatus(ctx, StatusUpdate{
		DocumentID:       doc.ID,
		Status:           "rejected",
		ExpectedRevision: ptr(int64(1)),
	})
	assert.ErrorIs(t, err, ErrDocumentChanged)

	_, err = db.UpdateDocumentStatus(ctx, StatusUpdate{DocumentID: "missing", Status: "rejected"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRecordEvent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	doc, err := db.CreateDocument(ctx, testDocument("contract"))
	require.NoError(t, err)
	template, err := db.CreateTemplate(ctx, Template{UserID: "alice", Name: "main", Image: []byte{1, 2, 3}, MediaType: "image/png"})
	require.NoError(t, err)

	event, updated, err := db.RecordEvent(ctx, SignatureEvent{
		DocumentID:     doc.ID,
		UserID:         "alice",
		UserName:       "Alice",
		TemplateID:     &template.ID,
		X:              ptr(100.0),
		Y:              ptr(650.0),
		Page:           ptr(0),
		Width:          ptr(150.0),
		Height:         ptr(50.0),
		Outcome:        "signed",
		SignedFilePath: ptr("signed/a.pdf"),
	}, StatusUpdate{
		DocumentID:         doc.ID,
		Status:             "signed",
		AllowedFrom:        []string{"draft", "pending_signature", "signed"},
		SignedFilePath:     ptr("signed/a.pdf"),
		SignedFileChecksum: ptr("abc"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "signed", updated.Status)
	require.NotNil(t, updated.SignedFilePath)
	assert.Equal(t, "signed/a.pdf", *updated.SignedFilePath)

	count, err := db.CountEventsByTemplate(ctx, template.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// a failing status update must not leave an event behind
	_, _, err = db.RecordEvent(ctx, SignatureEvent{DocumentID: doc.ID, UserID: "alice", Outcome: "signed"}, StatusUpdate{
		DocumentID:  doc.ID,
		Status:      "signed",
		AllowedFrom: []string{"draft"},
	})
	assert.ErrorIs(t, err, ErrDocumentChanged)

	events, err := db.ListEventsByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 150.0, *events[0].Width)
	assert.Equal(t, 0, *events[0].Page)

	_, err = db.DeleteDocument(ctx, doc.ID)
	require.NoError(t, err)

	events, err = db.ListEventsByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, events, 1, "events outlive their document")
}

func TestTemplates(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	first, err := db.CreateTemplate(ctx, Template{UserID: "alice", Name: "first", Image: []byte{1}, MediaType: "image/png"})
	require.NoError(t, err)
	second, err := db.CreateTemplate(ctx, Template{UserID: "alice", Name: "second", Image: []byte{2}, MediaType: "image/jpeg"})
	require.NoError(t, err)
	_, err = db.CreateTemplate(ctx, Template{UserID: "bob", Name: "bob", Image: []byte{3}, MediaType: "image/png"})
	require.NoError(t, err)

	templates, err := db.ListTemplates(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, templates, 2)
	assert.Equal(t, second.ID, templates[0].ID)
	assert.Nil(t, templates[0].Image)

	got, err := db.GetTemplate(ctx, "alice", first.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, got.Image)

	_, err = db.GetTemplate(ctx, "bob", first.ID)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	assert.ErrorIs(t, db.DeleteTemplate(ctx, "bob", first.ID), sql.ErrNoRows)

	_, _, err = db.RecordEvent(ctx, SignatureEvent{DocumentID: "x", UserID: "alice", TemplateID: &second.ID, Outcome: "signed"}, StatusUpdate{DocumentID: "x", Status: "signed"})
	assert.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, db.DeleteTemplate(ctx, "alice", first.ID))
	_, err = db.GetTemplate(ctx, "alice", first.ID)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestDeleteTemplateInUse(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	doc, err := db.CreateDocument(ctx, testDocument("contract"))
	require.NoError(t, err)
	template, err := db.CreateTemplate(ctx, Template{UserID: "alice", Name: "main", Image: []byte{1}, MediaType: "image/png"})
	require.NoError(t, err)

	_, _, err = db.RecordEvent(ctx, SignatureEvent{DocumentID: doc.ID, UserID: "alice", TemplateID: &template.ID, Outcome: "signed"}, StatusUpdate{DocumentID: doc.ID, Status: "signed"})
	require.NoError(t, err)

	assert.ErrorIs(t, db.DeleteTemplate(ctx, "alice", template.ID), ErrTemplateInUse)
}

func TestDeleteTemplateForeignKey(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	doc, err := db.CreateDocument(ctx, testDocument("contract"))
	require.NoError(t, err)
	template, err := db.CreateTemplate(ctx, Template{UserID: "alice", Name: "main", Image: []byte{1}, MediaType: "image/png"})
	require.NoError(t, err)
	_, _, err = db.RecordEvent(ctx, SignatureEvent{DocumentID: doc.ID, UserID: "alice", TemplateID: &template.ID, Outcome: "signed"}, StatusUpdate{DocumentID: doc.ID, Status: "signed"})
	require.NoError(t, err)

	// skips the event count of DeleteTemplate, like a delete which counted before the event was committed
	_, err = db.dbx.ExecContext(ctx, "DELETE FROM signature_templates WHERE id = $1", template.ID)
	require.Error(t, err)
	assert.True(t, isForeignKeyViolation(err))

	_, err = db.GetTemplate(ctx, "alice", template.ID)
	assert.NoError(t, err)
}

func TestRecordEventTemplateDeleted(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	doc, err := db.CreateDocument(ctx, testDocument("contract"))
	require.NoError(t, err)
	template, err := db.CreateTemplate(ctx, Template{UserID: "alice", Name: "main", Image: []byte{1}, MediaType: "image/png"})
	require.NoError(t, err)
	require.NoError(t, db.DeleteTemplate(ctx, "alice", template.ID))

	_, _, err = db.RecordEvent(ctx, SignatureEvent{DocumentID: doc.ID, UserID: "alice", TemplateID: &template.ID, Outcome: "signed", SignedFilePath: ptr("signed/a.pdf")}, StatusUpdate{
		DocumentID:     doc.ID,
		Status:         "signed",
		SignedFilePath: ptr("signed/a.pdf"),
	})
	assert.ErrorIs(t, err, ErrTemplateDeleted)

	got, err := db.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "draft", got.Status)
	assert.Equal(t, int64(1), got.Revision)
	assert.Nil(t, got.SignedFilePath)

	events, err := db.ListEventsByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestUpdateDocumentStatusSignedFile(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	doc, err := db.CreateDocument(ctx, testDocument("contract"))
	require.NoError(t, err)

	updated, err := db.UpdateDocumentStatus(ctx, StatusUpdate{DocumentID: doc.ID, Status: "signed", RestoreSignedFile: true})
	require.NoError(t, err)
	assert.Nil(t, updated.SignedFilePath, "no signed event to restore from")

	for _, path := range []string{"signed/a.pdf", "signed/b.pdf"} {
		_, _, err = db.RecordEvent(ctx, SignatureEvent{DocumentID: doc.ID, UserID: "alice", Outcome: "signed", SignedFilePath: ptr(path), SignedFileChecksum: ptr(path + "-sum")}, StatusUpdate{
			DocumentID:         doc.ID,
			Status:             "signed",
			SignedFilePath:     ptr(path),
			SignedFileChecksum: ptr(path + "-sum"),
		})
		require.NoError(t, err)
	}

	updated, err = db.UpdateDocumentStatus(ctx, StatusUpdate{DocumentID: doc.ID, Status: "rejected", ClearSignedFile: true})
	require.NoError(t, err)
	assert.Nil(t, updated.SignedFilePath)
	assert.Nil(t, updated.SignedFileChecksum)

	updated, err = db.UpdateDocumentStatus(ctx, StatusUpdate{DocumentID: doc.ID, Status: "signed", RestoreSignedFile: true})
	require.NoError(t, err)
	require.NotNil(t, updated.SignedFilePath)
	assert.Equal(t, "signed/b.pdf", *updated.SignedFilePath)
	require.NotNil(t, updated.SignedFileChecksum)
	assert.Equal(t, "signed/b.pdf-sum", *updated.SignedFileChecksum)
}

func TestConfigString(t *testing.T) {
	cfg := Config{Type: TypePostgres, Host: "localhost", Port: 5432, Username: "gosign", Password: "secret", Database: "gosign", SSLMode: "disable"}
	assert.NotContains(t, cfg.String(), "secret")
	assert.Contains(t, cfg.String(), "******")
}
