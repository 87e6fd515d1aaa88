package main

import (
	"numerus/internal/core/entity"
	"numerus/internal/domain/conversion"
	"numerus/internal/domain/workspace"
	"numerus/internal/metadata"
)

// setupMetadataRegistry initializes and populates the metadata registry.
func setupMetadataRegistry() *metadata.Registry {
	reg := metadata.NewRegistry()

	register := func(entity interface{}, name string, typ metadata.EntityType, label string) {
		def := metadata.Inspect(entity, name, typ)
		def.Label = label
		reg.Register(def)
	}

	// --- Catalogs ---
	register(workspace.Workspace{}, "Workspace", metadata.TypeCatalog, "Workspaces")

	// --- Documents ---
	// One definition covers all kinds; kind is a field, not a type split.
	register(entity.Document{}, "Document", metadata.TypeDocument, "Documents")

	// --- Links ---
	register(conversion.Link{}, "DocumentLink", metadata.TypeRegister, "Document links")

	return reg
}
