/*******************************************************************************
 * Copyright (c) 2026 Genome Research Ltd.
 *
 * Permission is hereby granted, free of charge, to any person obtaining
 * a copy of this software and associated documentation files (the
 * "Software"), to deal in the Software without restriction, including
 * without limitation the rights to use, copy, modify, merge, publish,
 * distribute, sublicense, and/or sell copies of the Software, and to
 * permit persons to whom the Software is furnished to do so, subject to
 * the following conditions:
 *
 * The above copyright notice and this permission notice shall be included
 * in all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
 * EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
 * MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
 * IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY
 * CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION OF CONTRACT,
 * TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION WITH THE
 * SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 ******************************************************************************/

package cmd

import (
	"os"

	"github.com/joho/godotenv"
)

const (
	envDB   = "OBSMON_DB"
	envRoot = "OBSMON_ROOT"
	envBind = "OBSMON_BIND"
)

var dotEnvKeys = []string{ //nolint:gochecknoglobals
	envDB,
	envRoot,
	envBind,
}

// loadDotEnv pulls our env keys from .env and .env.local into the process
// environment. Keys already set in the real environment always win.
func loadDotEnv() {
	orig := originalEnvKeys(dotEnvKeys)

	loadDotEnvFile(".env", orig)
	loadDotEnvFile(".env.local", orig)
}

func originalEnvKeys(keys []string) map[string]struct{} {
	orig := map[string]struct{}{}

	for _, key := range keys {
		if _, ok := os.LookupEnv(key); ok {
			orig[key] = struct{}{}
		}
	}

	return orig
}

func loadDotEnvFile(path string, orig map[string]struct{}) {
	env, err := godotenv.Read(path)
	if err != nil {
		return
	}

	for _, key := range dotEnvKeys {
		val, ok := env[key]
		if !ok {
			continue
		}

		if _, ok := orig[key]; ok {
			continue
		}

		_ = os.Setenv(key, val)
	}
}

// flagOrEnv returns the flag value, falling back to the named env var.
func flagOrEnv(flag, envKey string) string {
	if flag != "" {
		return flag
	}

	return os.Getenv(envKey)
}
