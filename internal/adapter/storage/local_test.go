package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/fierylion/pg-backups/internal/domain"
)

func writeFolder(t *testing.T, root, folderID string, files map[string][]byte) string {
	t.Helper()
	dir := filepath.Join(root, folderID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), content, 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestLocalBackend(t *testing.T) {
	Convey("Given a LocalBackend", t, func() {
		ctx := context.Background()
		tempDir, err := os.MkdirTemp("", "local_backend_test")
		So(err, ShouldBeNil)
		defer os.RemoveAll(tempDir)

		Convey("NewLocal", func() {
			Convey("When creating with valid path", func() {
				backend, err := NewLocal(tempDir, 1)

				Convey("It should create successfully", func() {
					So(err, ShouldBeNil)
					So(backend, ShouldNotBeNil)
					So(backend.Root(), ShouldEqual, tempDir)
					So(backend.Kind(), ShouldEqual, domain.DestinationLocal)
					So(backend.RetentionDays(), ShouldEqual, 1)
				})
			})

			Convey("When creating with non-existent path", func() {
				newPath := filepath.Join(tempDir, "new", "nested", "dir")
				backend, err := NewLocal(newPath, 1)

				Convey("It should create the directory and succeed", func() {
					So(err, ShouldBeNil)
					So(backend, ShouldNotBeNil)

					info, err := os.Stat(newPath)
					So(err, ShouldBeNil)
					So(info.IsDir(), ShouldBeTrue)
				})
			})
		})

		Convey("ListFolders", func() {
			backend, _ := NewLocal(tempDir, 1)

			Convey("When the root holds folders and unrelated entries", func() {
				writeFolder(t, tempDir, "20250102_030405", nil)
				writeFolder(t, tempDir, "20250101_000000", nil)
				writeFolder(t, tempDir, "notes", nil)
				So(os.WriteFile(filepath.Join(tempDir, "20250103_000000"), []byte("a file, not a folder"), 0644), ShouldBeNil)

				folders, err := backend.ListFolders(ctx)

				Convey("It should return only valid folder names, newest first", func() {
					So(err, ShouldBeNil)
					So(folders, ShouldResemble, []string{"20250102_030405", "20250101_000000"})
				})
			})

			Convey("When the root is empty", func() {
				folders, err := backend.ListFolders(ctx)
				So(err, ShouldBeNil)
				So(folders, ShouldBeEmpty)
			})
		})

		Convey("ListArtifacts", func() {
			backend, _ := NewLocal(tempDir, 1)

			Convey("When the folder mixes artifacts and other files", func() {
				writeFolder(t, tempDir, "20250101_000000", map[string][]byte{
					"postgres_cluster.sql.gz":  []byte("cluster-dump"),
					"postgres_db_sales.sql.gz": []byte("db"),
					"README.txt":               []byte("ignore me"),
				})

				artifacts, err := backend.ListArtifacts(ctx, "20250101_000000")

				Convey("It should classify only the artifacts, with sizes", func() {
					So(err, ShouldBeNil)
					So(len(artifacts), ShouldEqual, 2)

					byName := map[string]domain.Artifact{}
					for _, a := range artifacts {
						byName[a.FileName()] = a
					}
					So(byName["postgres_cluster.sql.gz"].Kind, ShouldEqual, domain.ArtifactCluster)
					So(byName["postgres_cluster.sql.gz"].Size, ShouldEqual, int64(len("cluster-dump")))
					So(byName["postgres_db_sales.sql.gz"].Database, ShouldEqual, "sales")
				})
			})

			Convey("When the folder does not exist", func() {
				_, err := backend.ListArtifacts(ctx, "20990101_000000")
				So(err, ShouldNotBeNil)
			})
		})

		Convey("PushFolder", func() {
			backend, _ := NewLocal(tempDir, 1)

			Convey("When pushing from a different root", func() {
				otherRoot, err := os.MkdirTemp("", "other_root")
				So(err, ShouldBeNil)
				defer os.RemoveAll(otherRoot)

				src := writeFolder(t, otherRoot, "20250101_000000", map[string][]byte{
					"postgres_cluster.sql.gz": []byte("cluster-data"),
					"postgres_globals.sql.gz": []byte("globals-data"),
				})

				err = backend.PushFolder(ctx, src, "20250101_000000")

				Convey("It should copy every file into the root", func() {
					So(err, ShouldBeNil)
					content, err := os.ReadFile(filepath.Join(tempDir, "20250101_000000", "postgres_cluster.sql.gz"))
					So(err, ShouldBeNil)
					So(content, ShouldResemble, []byte("cluster-data"))
				})

				Convey("Pushing again yields identical content", func() {
					So(err, ShouldBeNil)
					So(backend.PushFolder(ctx, src, "20250101_000000"), ShouldBeNil)

					content, err := os.ReadFile(filepath.Join(tempDir, "20250101_000000", "postgres_globals.sql.gz"))
					So(err, ShouldBeNil)
					So(content, ShouldResemble, []byte("globals-data"))

					entries, err := os.ReadDir(filepath.Join(tempDir, "20250101_000000"))
					So(err, ShouldBeNil)
					So(len(entries), ShouldEqual, 2)
				})
			})

			Convey("When the folder already lives at its destination", func() {
				src := writeFolder(t, tempDir, "20250101_000000", map[string][]byte{
					"postgres_cluster.sql.gz": []byte("in-place"),
				})

				err := backend.PushFolder(ctx, src, "20250101_000000")

				Convey("It should be a no-op", func() {
					So(err, ShouldBeNil)
					content, err := os.ReadFile(filepath.Join(src, "postgres_cluster.sql.gz"))
					So(err, ShouldBeNil)
					So(content, ShouldResemble, []byte("in-place"))
				})
			})

			Convey("When the source folder does not exist", func() {
				err := backend.PushFolder(ctx, filepath.Join(tempDir, "missing"), "20250101_000000")
				So(err, ShouldNotBeNil)
			})
		})

		Convey("FetchFolder", func() {
			backend, _ := NewLocal(tempDir, 1)

			Convey("When the folder exists", func() {
				writeFolder(t, tempDir, "20250101_000000", map[string][]byte{
					"postgres_cluster.sql.gz": []byte("x"),
				})

				path, err := backend.FetchFolder(ctx, "20250101_000000", "/anywhere")

				Convey("It should return the existing path without copying", func() {
					So(err, ShouldBeNil)
					So(path, ShouldEqual, filepath.Join(tempDir, "20250101_000000"))
				})
			})

			Convey("When the folder is absent", func() {
				_, err := backend.FetchFolder(ctx, "20990101_000000", "/anywhere")
				So(err, ShouldNotBeNil)
			})
		})

		Convey("DeleteFolder", func() {
			backend, _ := NewLocal(tempDir, 1)

			Convey("When deleting an existing folder", func() {
				writeFolder(t, tempDir, "20250101_000000", map[string][]byte{
					"postgres_cluster.sql.gz": []byte("x"),
				})

				err := backend.DeleteFolder(ctx, "20250101_000000")

				Convey("The folder and its artifacts are gone", func() {
					So(err, ShouldBeNil)
					_, statErr := os.Stat(filepath.Join(tempDir, "20250101_000000"))
					So(os.IsNotExist(statErr), ShouldBeTrue)
				})
			})

			Convey("When the id is not a valid folder name", func() {
				writeFolder(t, tempDir, "20250101_000000", nil)

				Convey("It should refuse instead of deleting", func() {
					So(backend.DeleteFolder(ctx, "not_a_folder"), ShouldNotBeNil)
					So(backend.DeleteFolder(ctx, ".."), ShouldNotBeNil)
					So(backend.DeleteFolder(ctx, ""), ShouldNotBeNil)

					_, statErr := os.Stat(filepath.Join(tempDir, "20250101_000000"))
					So(statErr, ShouldBeNil)
				})
			})
		})

		Convey("IsReachable", func() {
			Convey("An existing root is reachable", func() {
				backend, _ := NewLocal(tempDir, 1)
				So(backend.IsReachable(ctx), ShouldBeTrue)
			})

			Convey("A removed root is not", func() {
				gone := filepath.Join(tempDir, "gone")
				backend, err := NewLocal(gone, 1)
				So(err, ShouldBeNil)
				So(os.RemoveAll(gone), ShouldBeNil)
				So(backend.IsReachable(ctx), ShouldBeFalse)
			})
		})

		Convey("CreateFolder", func() {
			backend, _ := NewLocal(tempDir, 1)

			path, err := backend.CreateFolder("20250101_000000")

			Convey("It should create the cycle directory under the root", func() {
				So(err, ShouldBeNil)
				So(path, ShouldEqual, filepath.Join(tempDir, "20250101_000000"))

				info, statErr := os.Stat(path)
				So(statErr, ShouldBeNil)
				So(info.IsDir(), ShouldBeTrue)
			})
		})
	})
}
