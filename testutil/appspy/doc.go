// Package appspy provides test doubles for the side-effect ports of the application shell.
package appspy
