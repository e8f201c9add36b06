// Package pool loads the shared question pool: a JSON array of loosely typed question records
// fetched from an http(s), s3 or file URL and cached in memory.
package pool
