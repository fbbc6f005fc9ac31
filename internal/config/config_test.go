package config

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PGHOST", "db.internal")
	t.Setenv("PGUSER", "postgres")

	Convey("Given only the required connection variables", t, func() {
		cfg, err := Load("")
		So(err, ShouldBeNil)

		Convey("Every optional setting falls back to its default", func() {
			So(cfg.Postgres.Port, ShouldEqual, 5432)
			So(cfg.Backup.Path, ShouldEqual, "/backups")
			So(cfg.Backup.Schedule, ShouldEqual, "0 0 2 * * *")
			So(cfg.Backup.RetentionDays, ShouldEqual, 1)
			So(cfg.S3.Enabled, ShouldBeFalse)
			So(cfg.S3.Prefix, ShouldEqual, "postgres-backups")
			So(cfg.S3.RetentionDays, ShouldEqual, 7)
			So(cfg.Rsync.Enabled, ShouldBeFalse)
			So(cfg.Rsync.Port, ShouldEqual, 22)
			So(cfg.Rsync.RetentionDays, ShouldEqual, 30)
			So(cfg.App.LogLevel, ShouldEqual, "info")
		})

		Convey("No restore parameters means interactive mode", func() {
			So(cfg.Restore.Automated(), ShouldBeFalse)
		})
	})
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PGHOST", "10.0.0.5")
	t.Setenv("PGPORT", "5433")
	t.Setenv("PGUSER", "backup_user")
	t.Setenv("PGPASSWORD", "hunter2")
	t.Setenv("BACKUP_PATH", "/srv/backups")
	t.Setenv("BACKUP_SCHEDULE", "0 30 1 * * *")
	t.Setenv("LOCAL_RETENTION_DAYS", "3")
	t.Setenv("S3_ENABLED", "true")
	t.Setenv("S3_BUCKET", "db-backups")
	t.Setenv("S3_REGION", "eu-central-1")
	t.Setenv("S3_ACCESS_KEY", "AKIA")
	t.Setenv("S3_SECRET_KEY", "secret")
	t.Setenv("S3_ENDPOINT", "https://minio.internal:9000")
	t.Setenv("S3_RETENTION_DAYS", "14")
	t.Setenv("RSYNC_ENABLED", "true")
	t.Setenv("RSYNC_HOST", "vault.internal")
	t.Setenv("RSYNC_USER", "sync")
	t.Setenv("RSYNC_PORT", "2222")
	t.Setenv("RSYNC_PATH", "/data/pg")
	t.Setenv("RSYNC_RETENTION_DAYS", "60")

	Convey("Given a fully populated environment", t, func() {
		cfg, err := Load("")
		So(err, ShouldBeNil)

		Convey("Every value flows through, with correct types", func() {
			So(cfg.Postgres.Host, ShouldEqual, "10.0.0.5")
			So(cfg.Postgres.Port, ShouldEqual, 5433)
			So(cfg.Postgres.User, ShouldEqual, "backup_user")
			So(cfg.Postgres.Password, ShouldEqual, "hunter2")
			So(cfg.Backup.Path, ShouldEqual, "/srv/backups")
			So(cfg.Backup.Schedule, ShouldEqual, "0 30 1 * * *")
			So(cfg.Backup.RetentionDays, ShouldEqual, 3)
			So(cfg.S3.Enabled, ShouldBeTrue)
			So(cfg.S3.Bucket, ShouldEqual, "db-backups")
			So(cfg.S3.Endpoint, ShouldEqual, "https://minio.internal:9000")
			So(cfg.S3.RetentionDays, ShouldEqual, 14)
			So(cfg.Rsync.Enabled, ShouldBeTrue)
			So(cfg.Rsync.Host, ShouldEqual, "vault.internal")
			So(cfg.Rsync.Port, ShouldEqual, 2222)
			So(cfg.Rsync.RetentionDays, ShouldEqual, 60)
		})

		Convey("Destination validation passes for both destinations", func() {
			So(cfg.S3.Validate(), ShouldBeNil)
			So(cfg.Rsync.Validate(), ShouldBeNil)
		})
	})
}

func TestLoadValidation(t *testing.T) {
	Convey("Given an incomplete environment", t, func() {
		Convey("A missing PGHOST is rejected", func() {
			t.Setenv("PGHOST", "")
			t.Setenv("PGUSER", "postgres")
			_, err := Load("")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "PGHOST")
		})
	})
}

func TestLoadDefaultUser(t *testing.T) {
	t.Setenv("PGHOST", "db.internal")
	t.Setenv("PGUSER", "")

	Convey("An unset PGUSER falls back to postgres", t, func() {
		cfg, err := Load("")
		So(err, ShouldBeNil)
		So(cfg.Postgres.User, ShouldEqual, "postgres")
	})
}

func TestLoadValidationPort(t *testing.T) {
	t.Setenv("PGHOST", "db.internal")
	t.Setenv("PGUSER", "postgres")
	t.Setenv("PGPORT", "99999")

	Convey("An out-of-range PGPORT is rejected", t, func() {
		_, err := Load("")
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "PGPORT")
	})
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("PGUSER", "from_env")

	Convey("Given a yaml config file", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		yaml := []byte(`
postgres:
  host: file-host
  user: file_user
backup:
  path: /from/file
`)
		So(os.WriteFile(path, yaml, 0o644), ShouldBeNil)

		cfg, err := Load(path)
		So(err, ShouldBeNil)

		Convey("File values are used where the environment is silent", func() {
			So(cfg.Postgres.Host, ShouldEqual, "file-host")
			So(cfg.Backup.Path, ShouldEqual, "/from/file")
		})

		Convey("Environment variables override the file", func() {
			So(cfg.Postgres.User, ShouldEqual, "from_env")
		})
	})
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("PGHOST", "db.internal")
	t.Setenv("PGUSER", "postgres")

	Convey("A config path that does not exist is an error", t, func() {
		_, err := Load("/nonexistent/config.yaml")
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "failed to read config")
	})
}

func TestDestinationValidation(t *testing.T) {
	Convey("Given destination settings to validate", t, func() {
		Convey("S3 requires bucket, credentials, and a region or endpoint", func() {
			s3 := S3Config{Region: "us-east-1", AccessKey: "k", SecretKey: "s"}
			err := s3.Validate()
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "S3_BUCKET")

			s3 = S3Config{Bucket: "b", AccessKey: "k", SecretKey: "s"}
			err = s3.Validate()
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "S3_REGION")

			s3 = S3Config{Bucket: "b", Region: "us-east-1"}
			err = s3.Validate()
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "S3_ACCESS_KEY")

			s3 = S3Config{Bucket: "b", Endpoint: "https://minio:9000", AccessKey: "k", SecretKey: "s"}
			So(s3.Validate(), ShouldBeNil)
		})

		Convey("Rsync requires host, user and remote path", func() {
			r := RsyncConfig{User: "sync", Port: 22, Path: "/data"}
			err := r.Validate()
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "RSYNC_HOST")

			r = RsyncConfig{Host: "h", Port: 22, Path: "/data"}
			err = r.Validate()
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "RSYNC_USER")

			r = RsyncConfig{Host: "h", User: "sync", Port: 22}
			err = r.Validate()
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "RSYNC_PATH")

			r = RsyncConfig{Host: "h", User: "sync", Port: 22, Path: "/data"}
			So(r.Validate(), ShouldBeNil)
		})
	})
}

func TestRestoreMode(t *testing.T) {
	Convey("Given restore parameters", t, func() {
		Convey("All three of source, folder and type select automated mode", func() {
			rc := RestoreConfig{Source: "local", Folder: "20250101_000000", Type: "cluster"}
			So(rc.Automated(), ShouldBeTrue)
		})

		Convey("Any subset falls back to interactive mode", func() {
			So((&RestoreConfig{Source: "local"}).Automated(), ShouldBeFalse)
			So((&RestoreConfig{Source: "local", Folder: "20250101_000000"}).Automated(), ShouldBeFalse)
			So((&RestoreConfig{Folder: "20250101_000000", Type: "cluster"}).Automated(), ShouldBeFalse)
			So((&RestoreConfig{Database: "sales"}).Automated(), ShouldBeFalse)
		})
	})
}
