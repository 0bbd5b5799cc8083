//go:build mage

// Copyright 2021-2022
// SPDX-License-Identifier: Apache-2.0
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

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/magefile/mage/mg" // mg contains helpful utility functions, like Deps
	"github.com/magefile/mage/sh"
)

const (
	binaryName  = "dartboard"
	packageName = "."
	modulePath  = "github.com/penny-vault/dartboard"
	coverFile   = "coverage.out"
)

var ldflags = "-X " + modulePath + "/common.commitHash=$COMMIT_HASH -X " + modulePath + "/common.buildDate=$BUILD_DATE"

// allow user to override go executable by running as GOEXE=xxx make ... on unix-like systems
var goexe = "go"

func init() {
	if exe := os.Getenv("GOEXE"); exe != "" {
		goexe = exe
	}
}

// Default target to run when none is specified
var Default = Build

// Build the dartboard binary with the commit hash and build date stamped in
func Build() error {
	fmt.Println("Building...")
	return runWith(flagEnv(), goexe, "build", "-o", binaryName, "-ldflags", ldflags, buildFlags(), "-v", packageName)
}

// Install dartboard into GOBIN
func Install() error {
	return runWith(flagEnv(), goexe, "install", "-ldflags", ldflags, buildFlags(), packageName)
}

// Clean removes the binary and coverage output
func Clean() {
	fmt.Println("Cleaning...")
	os.RemoveAll(binaryName)
	os.RemoveAll(coverFile)
}

// Check runs fmt, vet, and the race-enabled test suite
func Check() {
	mg.Deps(Fmt, Vet)

	// the simulation suites saturate the CPUs, so run tests after the static checks
	mg.Deps(TestRace)
}

// Test runs every ginkgo suite
func Test() error {
	fmt.Println("Go Test")
	return runCmd(nil, goexe, "test", "./...", buildFlags())
}

// TestRace runs every ginkgo suite with the race detector; the simulation worker
// pool is the main target
func TestRace() error {
	fmt.Println("Go Test Race")
	return runCmd(nil, goexe, "test", "-race", "./...", buildFlags())
}

// Bench runs the simulation throughput experiment and prints the gmeasure report
func Bench() error {
	fmt.Println("Simulation Throughput")
	return sh.RunV(goexe, "test", "./simulation", "-count=1", "-v", "--ginkgo.focus=throughput")
}

// Fmt fails if any package has files gofmt would change
func Fmt() error {
	fmt.Println("Go Format")

	pkgs, err := dartboardPackages()
	if err != nil {
		return err
	}

	var unformatted []string
	for _, pkg := range pkgs {
		files, err := filepath.Glob(filepath.Join(pkg, "*.go"))
		if err != nil {
			return err
		}
		if len(files) == 0 {
			continue
		}
		// gofmt doesn't exit with non-zero when it finds unformatted code
		s, err := sh.Output("gofmt", append([]string{"-l"}, files...)...)
		if err != nil {
			return fmt.Errorf("running gofmt on %q: %w", pkg, err)
		}
		if s != "" {
			unformatted = append(unformatted, strings.Split(s, "\n")...)
		}
	}

	if len(unformatted) > 0 {
		fmt.Println("The following files are not gofmt'ed:")
		for _, fn := range unformatted {
			fmt.Println(fn)
		}
		return errors.New("improperly formatted go files")
	}
	return nil
}

// Vet runs go vet over the module
func Vet() error {
	fmt.Println("Go Vet")

	if err := sh.Run(goexe, "vet", "./..."); err != nil {
		return fmt.Errorf("error running go vet: %v", err)
	}
	return nil
}

// Cover writes a coverage profile for the whole module and prints the per-function
// summary
func Cover() error {
	fmt.Println("Go Coverage")

	if err := sh.Run(goexe, "test", "-coverprofile="+coverFile, "-covermode=count", "-coverpkg=./...", "./..."); err != nil {
		return err
	}
	return sh.RunV(goexe, "tool", "cover", "-func="+coverFile)
}

// CoverHTML opens the coverage profile in a browser
func CoverHTML() error {
	mg.Deps(Cover)
	return sh.Run(goexe, "tool", "cover", "-html="+coverFile)
}

func buildFlags() []string {
	if runtime.GOOS == "windows" {
		return []string{"-buildmode", "exe"}
	}
	return nil
}

func flagEnv() map[string]string {
	hash, _ := sh.Output("git", "rev-parse", "--short", "HEAD")
	return map[string]string{
		"COMMIT_HASH": hash,
		"BUILD_DATE":  time.Now().Format("2006-01-02T15:04:05Z0700"),
	}
}

func runCmd(env map[string]string, cmd string, args ...interface{}) error {
	if mg.Verbose() {
		return runWith(env, cmd, args...)
	}
	output, err := sh.OutputWith(env, cmd, argsToStrings(args...)...)
	if err != nil {
		fmt.Fprint(os.Stderr, output)
	}

	return err
}

func runWith(env map[string]string, cmd string, inArgs ...interface{}) error {
	s := argsToStrings(inArgs...)
	return sh.RunWith(env, cmd, s...)
}

var (
	pkgs     []string
	pkgsInit sync.Once
)

// dartboardPackages lists the module's packages as relative directories
func dartboardPackages() ([]string, error) {
	var err error
	pkgsInit.Do(func() {
		var s string
		s, err = sh.Output(goexe, "list", "./...")
		if err != nil {
			return
		}
		for _, pkg := range strings.Split(s, "\n") {
			pkgs = append(pkgs, "."+strings.TrimPrefix(pkg, modulePath))
		}
	})
	return pkgs, err
}

func argsToStrings(v ...interface{}) []string {
	var args []string
	for _, arg := range v {
		switch v := arg.(type) {
		case string:
			if v != "" {
				args = append(args, v)
			}
		case []string:
			if v != nil {
				args = append(args, v...)
			}
		default:
			panic("invalid type")
		}
	}

	return args
}
