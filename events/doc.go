// Package events defines pipeline lifecycle notifications and publishers.
package events
