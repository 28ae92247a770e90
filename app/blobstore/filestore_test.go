package blobstore_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/app/blobstore"
)

func Test_FileStore_SaveOpenDelete(t *testing.T) {
	// setup
	store := givenFileStore(t)
	content := []byte("GIF89a fake image bytes")

	// act
	ref, err := store.Save(context.Background(), bytes.NewReader(content), "Cover.GIF", 1024)

	// assert
	require.NoError(t, err)
	assert.NoError(t, blobstore.ValidateRef(ref))
	assert.True(t, strings.HasSuffix(ref, ".gif"))
	assert.Equal(t, "image/gif", blobstore.ContentType(ref))

	f, err := store.Open(ref)
	require.NoError(t, err)
	read, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, content, read)

	assert.NoError(t, store.Delete(ref))
	assert.ErrorIs(t, store.Delete(ref), blobstore.ErrBlobNotFound)

	_, err = store.Open(ref)
	assert.ErrorIs(t, err, blobstore.ErrBlobNotFound)
}

func Test_FileStore_Save_GeneratesDistinctRefs(t *testing.T) {
	// setup
	store := givenFileStore(t)

	// act
	first, err1 := store.Save(context.Background(), strings.NewReader(pngHeader+"a"), "cover.png", 1024)
	second, err2 := store.Save(context.Background(), strings.NewReader(pngHeader+"b"), "cover.png", 1024)

	// assert
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.NotEqual(t, first, second)
}

func Test_FileStore_Save_RejectsUnsupportedTypeAndOversize(t *testing.T) {
	// setup
	dir := t.TempDir()
	store, err := blobstore.NewFileStore(dir)
	require.NoError(t, err)

	// act
	_, typeErr := store.Save(context.Background(), strings.NewReader("%PDF"), "cover.pdf", 1024)
	_, sizeErr := store.Save(context.Background(), bytes.NewReader(make([]byte, 1025)), "cover.jpg", 1024)
	ref, exactErr := store.Save(context.Background(), bytes.NewReader(jpegOfSize(1024)), "cover.jpeg", 1024)

	// assert
	assert.ErrorIs(t, typeErr, blobstore.ErrUnsupportedType)
	assert.ErrorIs(t, sizeErr, blobstore.ErrTooLarge)
	assert.NoError(t, exactErr)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "rejected uploads leave nothing behind")
	assert.Equal(t, ref, entries[0].Name())
}

func Test_FileStore_Save_RejectsContentNotMatchingTheExtension(t *testing.T) {
	// setup
	dir := t.TempDir()
	store, err := blobstore.NewFileStore(dir)
	require.NoError(t, err)

	testCases := []struct {
		name     string
		content  string
		filename string
	}{
		{name: "text named png", content: "just some text", filename: "cover.png"},
		{name: "png named gif", content: pngHeader + "payload", filename: "cover.gif"},
		{name: "gif named jpg", content: "GIF89a payload", filename: "cover.jpg"},
		{name: "empty file", content: "", filename: "cover.png"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// act
			_, saveErr := store.Save(context.Background(), strings.NewReader(tc.content), tc.filename, 1024)

			// assert
			assert.ErrorIs(t, saveErr, blobstore.ErrUnsupportedType)
		})
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected uploads leave nothing behind")
}

func Test_FileStore_Save_AcceptsLargeImagesBeyondTheSniffedHead(t *testing.T) {
	// setup
	store := givenFileStore(t)
	content := jpegOfSize(4096)

	// act
	ref, err := store.Save(context.Background(), bytes.NewReader(content), "photo.JPG", 4096)

	// assert
	require.NoError(t, err)

	f, err := store.Open(ref)
	require.NoError(t, err)
	read, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, content, read)
}

func Test_ValidateRef(t *testing.T) {
	testCases := []struct {
		ref     string
		isValid bool
	}{
		{ref: "0190f7f2-8f3a-7c3e-9b9b-3b5a2c1d4e5f.png", isValid: true},
		{ref: "0190f7f2-8f3a-7c3e-9b9b-3b5a2c1d4e5f.jpeg", isValid: true},
		{ref: "0190f7f2-8f3a-7c3e-9b9b-3b5a2c1d4e5f.PNG"},
		{ref: "0190f7f2-8f3a-7c3e-9b9b-3b5a2c1d4e5f.exe"},
		{ref: "0190f7f28f3a7c3e9b9b3b5a2c1d4e5f.png"},
		{ref: "../secret.png"},
		{ref: "0190f7f2-8f3a-7c3e-9b9b-3b5a2c1d4e5f"},
		{ref: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.ref, func(t *testing.T) {
			// act
			err := blobstore.ValidateRef(tc.ref)

			// assert
			if tc.isValid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, blobstore.ErrInvalidRef)
			}
		})
	}
}

func Test_FileStore_Delete_RejectsPathTraversal(t *testing.T) {
	// setup
	dir := t.TempDir()
	victim := filepath.Join(dir, "victim.png")
	require.NoError(t, os.WriteFile(victim, []byte("x"), 0o600))

	store, err := blobstore.NewFileStore(filepath.Join(dir, "images"))
	require.NoError(t, err)

	// act
	err = store.Delete("../victim.png")

	// assert
	assert.ErrorIs(t, err, blobstore.ErrInvalidRef)
	assert.FileExists(t, victim)
}

func givenFileStore(t *testing.T) *blobstore.FileStore {
	t.Helper()

	store, err := blobstore.NewFileStore(t.TempDir())
	require.NoError(t, err, "error in arranging test data")

	return store
}

const pngHeader = "\x89PNG\r\n\x1a\n"

func jpegOfSize(size int) []byte {
	content := make([]byte, size)
	copy(content, "\xff\xd8\xff\xe0")

	return content
}
