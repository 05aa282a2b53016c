// Package pagemap provides the page-aligned allocator that backs a
// connection reactor's slot arena. See Allocate and Arena.
package pagemap
