package ports

import "context"

// TransferProgress reports incremental byte counts during a transport's
// Copy call so the transfer manager can persist TransferJob.BytesDone.
type TransferProgress func(bytesDone, bytesTotal int64)

// TransferTransport moves a completed remote torrent's payload to a local
// path. internal/transfer selects an implementation per spec.md §4.7's
// priority order: mount_path > http_download > ssh.
type TransferTransport interface {
	Name() string
	Copy(ctx context.Context, sourcePath, destPath string, onProgress TransferProgress) (bytesTotal int64, err error)
}
