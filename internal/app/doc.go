// Package app builds the services from configuration.
package app
