// Package vhost defines the virtual host and site records that flow through
// the discovery pipeline, plus the naming conventions shared by the filter and
// the site deriver.
package vhost
