package design

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/carbocation/pfx"
)

// BackupSuffix marks the audit copy of a configuration document that was
// superseded by QC reconciliation.
const BackupSuffix = ".before-qc"

// BackupPath returns the first unused audit name for path: path.before-qc,
// then path.before-qc.1, path.before-qc.2 and so on. Existing audit copies are
// never reused.
func BackupPath(path string) (string, error) {
	candidate := path + BackupSuffix
	for i := 1; ; i++ {
		_, err := os.Stat(candidate)
		if os.IsNotExist(err) {
			return candidate, nil
		} else if err != nil {
			return "", pfx.Err(err)
		}
		candidate = fmt.Sprintf("%s%s.%d", path, BackupSuffix, i)
	}
}

// SaveWithBackup makes cfg the authoritative document at path. The previous
// document, if any, is renamed to its audit name first; the new one is
// written to a temporary file in the same directory and renamed into place,
// so path never holds a partial document. Returns the audit path, which is
// empty if there was no previous document.
func SaveWithBackup(path string, cfg *ExperimentConfig) (string, error) {
	tmp, err := ioutil.TempFile(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return "", pfx.Err(err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteConfig(tmp, cfg); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", pfx.Err(err)
	}

	backup := ""
	if _, err := os.Stat(path); err == nil {
		if backup, err = BackupPath(path); err != nil {
			return "", err
		}
		if err := os.Rename(path, backup); err != nil {
			return "", pfx.Err(err)
		}
	} else if !os.IsNotExist(err) {
		return "", pfx.Err(err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return backup, pfx.Err(err)
	}

	return backup, nil
}
