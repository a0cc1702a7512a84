package config

// S3Config selects and configures the object store backing rendered
// screenshots and PDFs (§8). StorageMode follows the teacher's own
// initFileStorage switch ("local" or "s3"); the local mode fields configure
// objectstorelocal instead of fsxlocal directly, since object storage needs
// a public base URL and a signing secret fsx.FileSystem has no concept of.
type S3Config struct {
	StorageMode string

	Bucket   string
	Region   string
	Endpoint string

	LocalUploadDir string
	LocalPublicURL string
	LocalSecret    string
}

func loadS3Config() S3Config {
	return S3Config{
		StorageMode:    getEnv("STORAGE_MODE", "local"),
		Bucket:         getEnv("S3_BUCKET", "screencraft-artifacts"),
		Region:         getEnv("AWS_REGION", "us-east-1"),
		Endpoint:       getEnv("S3_ENDPOINT", ""),
		LocalUploadDir: getEnv("UPLOAD_DIR", "./uploads"),
		LocalPublicURL: getEnv("LOCAL_STORAGE_PUBLIC_URL", "http://localhost:8080/files"),
		LocalSecret:    getEnv("LOCAL_STORAGE_SECRET", "dev-only-local-storage-secret"),
	}
}
