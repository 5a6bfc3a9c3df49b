// Package repository define las entidades persistidas y los contratos de acceso
// a datos. Las implementaciones viven en internal/store/adapters.
package repository
