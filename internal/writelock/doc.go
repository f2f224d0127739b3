// Package writelock provides the mutation lock shared by the reconciler,
// the archive importer and deletions, so two writers never touch the same
// album rows and directories at once.
package writelock
