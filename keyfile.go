// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package stenc

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// ReadKeyFile reads a key file: the key in hex on the first line, optionally followed by a key
// name on the second line. Blank lines and lines starting with '#' are ignored.
func ReadKeyFile(r io.Reader) (key []byte, name string, err error) {
	var lines []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		lines = append(lines, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, "", errors.Wrap(err, "cannot read key file")
	}

	if len(lines) == 0 {
		return nil, "", errors.New("key file contains no key")
	}

	if len(lines) > 2 {
		return nil, "", errors.Errorf("key file has %d lines, expected a key and an optional name", len(lines))
	}

	key, err = hex.DecodeString(lines[0])
	if err != nil {
		return nil, "", errors.Wrap(err, "invalid key")
	}

	if len(key) == 0 {
		return nil, "", errors.New("key file contains no key")
	}

	if len(lines) == 2 {
		name = lines[1]
	}

	return key, name, nil
}

// WriteKeyFile writes key and an optional key name in the format read by ReadKeyFile.
func WriteKeyFile(w io.Writer, key []byte, name string) error {
	if strings.ContainsAny(name, "\r\n") {
		return errors.New("key name must not contain line breaks")
	}

	if _, err := fmt.Fprintln(w, hex.EncodeToString(key)); err != nil {
		return err
	}

	if name != "" {
		if _, err := fmt.Fprintln(w, name); err != nil {
			return err
		}
	}

	return nil
}

// GenerateKey returns a random key of the given size in bits.
func GenerateKey(bits int) ([]byte, error) {
	if bits <= 0 || bits%8 != 0 {
		return nil, errors.Errorf("invalid key size of %d bits", bits)
	}

	key := make([]byte, bits/8)
	if _, err := rand.Read(key); err != nil {
		return nil, errors.Wrap(err, "cannot generate key")
	}

	return key, nil
}
