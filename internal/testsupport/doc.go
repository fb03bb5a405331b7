// Package testsupport holds helpers shared by package tests: temp-dir
// configurations, an opened post store, and seeded clients and posts.
package testsupport
