// Copyright 2018-2024 CERN
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// In applying this license, CERN does not waive the privileges and immunities
// granted to it by virtue of its status as an Intergovernmental Organization
// or submit itself to any jurisdiction.

// Package blobstore provides access to the s3 compatible object store that
// holds the original uploads and their optimized derivatives.
package blobstore

import (
	"context"
	"net/url"
	"regexp"
	"strconv"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/tags"
	"github.com/pkg/errors"
)

// Blobstore provides an interface to an s3 compatible blobstore
type Blobstore struct {
	client *minio.Client

	bucket string
}

var optimizedRe = regexp.MustCompile(`(.+)(/[^/.]+)(\..+)$`)

// New returns a new Blobstore
func New(endpoint, region, bucket, accessKey, secretKey string) (*Blobstore, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse s3 endpoint")
	}

	useSSL := u.Scheme != "http"
	client, err := minio.New(u.Host, &minio.Options{
		Region: region,
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to setup s3 client")
	}

	return &Blobstore{
		client: client,
		bucket: bucket,
	}, nil
}

// ObjectKey returns the object key of the original upload for the given
// owner and inode path.
func ObjectKey(ownerID, path string) string {
	return "users/" + ownerID + path
}

// OptimizedObjectKey returns the object key of the optimized derivative.
// The optimized variant lives next to the original with an "_optimized"
// suffix before the extension.
func OptimizedObjectKey(ownerID, path string) string {
	return "users/" + ownerID + optimizedRe.ReplaceAllString(path, "${1}${2}_optimized${3}")
}

// Download fetches the original upload into the local file at target.
func (bs *Blobstore) Download(ctx context.Context, ownerID, path, target string) error {
	key := ObjectKey(ownerID, path)
	if err := bs.client.FGetObject(ctx, bs.bucket, key, target, minio.GetObjectOptions{}); err != nil {
		return errors.Wrapf(err, "could not download object '%s' from bucket '%s'", key, bs.bucket)
	}
	return nil
}

// UploadOptimized stores the local file at source under the optimized key.
func (bs *Blobstore) UploadOptimized(ctx context.Context, ownerID, path, source string) error {
	key := OptimizedObjectKey(ownerID, path)
	_, err := bs.client.FPutObject(ctx, bs.bucket, key, source, minio.PutObjectOptions{
		ContentType: "application/pdf",
	})
	if err != nil {
		return errors.Wrapf(err, "could not store object '%s' into bucket '%s'", key, bs.bucket)
	}
	return nil
}

// Move relocates both the original and the optimized object from oldPath
// to newPath. S3 has no rename, so this is a copy followed by a remove.
func (bs *Blobstore) Move(ctx context.Context, ownerID, oldPath, newPath string) error {
	pairs := [][2]string{
		{ObjectKey(ownerID, oldPath), ObjectKey(ownerID, newPath)},
		{OptimizedObjectKey(ownerID, oldPath), OptimizedObjectKey(ownerID, newPath)},
	}

	for _, p := range pairs {
		old, next := p[0], p[1]
		_, err := bs.client.CopyObject(ctx,
			minio.CopyDestOptions{Bucket: bs.bucket, Object: next},
			minio.CopySrcOptions{Bucket: bs.bucket, Object: old},
		)
		if err != nil {
			return errors.Wrapf(err, "could not copy object '%s' to '%s'", old, next)
		}
		if err := bs.client.RemoveObject(ctx, bs.bucket, old, minio.RemoveObjectOptions{}); err != nil {
			return errors.Wrapf(err, "could not remove object '%s' from bucket '%s'", old, bs.bucket)
		}
	}
	return nil
}

// Delete removes both variants of the inode's objects. Deletion is best
// effort: per-object errors are collected and returned, not fatal.
func (bs *Blobstore) Delete(ctx context.Context, ownerID, path string) []error {
	keys := []string{
		ObjectKey(ownerID, path),
		OptimizedObjectKey(ownerID, path),
	}

	objectsCh := make(chan minio.ObjectInfo, len(keys))
	for _, key := range keys {
		objectsCh <- minio.ObjectInfo{Key: key}
	}
	close(objectsCh)

	var errs []error
	for rmErr := range bs.client.RemoveObjects(ctx, bs.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		if rmErr.Err != nil {
			errs = append(errs, errors.Wrapf(rmErr.Err, "could not remove object '%s' from bucket '%s'", rmErr.ObjectName, bs.bucket))
		}
	}
	return errs
}

// SetPublicTags mirrors the inode's is_public flag onto both object
// variants so the front-end can serve public files directly.
func (bs *Blobstore) SetPublicTags(ctx context.Context, ownerID, path string, isPublic bool) error {
	t, err := tags.NewTags(map[string]string{"is_public": strconv.FormatBool(isPublic)}, true)
	if err != nil {
		return errors.Wrap(err, "could not build object tags")
	}

	for _, key := range []string{ObjectKey(ownerID, path), OptimizedObjectKey(ownerID, path)} {
		if err := bs.client.PutObjectTagging(ctx, bs.bucket, key, t, minio.PutObjectTaggingOptions{}); err != nil {
			return errors.Wrapf(err, "could not tag object '%s' in bucket '%s'", key, bs.bucket)
		}
	}
	return nil
}
