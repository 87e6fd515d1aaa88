package dto

import (
	"numerus/internal/core/id"
	"numerus/internal/domain/workspace"
)

// CreateWorkspaceRequest is the DTO for creating a workspace.
type CreateWorkspaceRequest struct {
	Code        string `json:"code"`
	Name        string `json:"name" binding:"required"`
	CompanyName string `json:"companyName" binding:"required"`

	// Hierarchy: branch offices nest under a head office.
	ParentID *string `json:"parentId"`
	IsFolder bool    `json:"isFolder"`

	// Both switches default to enabled; pointers distinguish "absent"
	// from "explicitly off".
	AllowManualNumbers  *bool `json:"allowManualNumbers"`
	DraftPreviewEnabled *bool `json:"draftPreviewEnabled"`
}

func (r CreateWorkspaceRequest) ToEntity() *workspace.Workspace {
	ws := workspace.NewWorkspace(r.Code, r.Name, r.CompanyName)
	ws.ParentID = r.ParentID
	ws.IsFolder = r.IsFolder
	if r.AllowManualNumbers != nil {
		ws.AllowManualNumbers = *r.AllowManualNumbers
	}
	if r.DraftPreviewEnabled != nil {
		ws.DraftPreviewEnabled = *r.DraftPreviewEnabled
	}
	return ws
}

// UpdateWorkspaceRequest is the DTO for updating a workspace. The deletion
// mark is not updatable here: retirement goes through DELETE or the
// deletion-mark endpoint, where the live-documents guard applies.
type UpdateWorkspaceRequest struct {
	ID      id.ID `json:"id" binding:"required"`
	Version int   `json:"version" binding:"required"`

	Code        string `json:"code"`
	Name        string `json:"name" binding:"required"`
	CompanyName string `json:"companyName" binding:"required"`

	ParentID *string `json:"parentId"`
	IsFolder bool    `json:"isFolder"`

	AllowManualNumbers  bool `json:"allowManualNumbers"`
	DraftPreviewEnabled bool `json:"draftPreviewEnabled"`
}

func (r UpdateWorkspaceRequest) ApplyTo(ws *workspace.Workspace) {
	ws.Code = r.Code
	ws.Name = r.Name
	ws.CompanyName = r.CompanyName
	ws.ParentID = r.ParentID
	ws.IsFolder = r.IsFolder
	ws.AllowManualNumbers = r.AllowManualNumbers
	ws.DraftPreviewEnabled = r.DraftPreviewEnabled
}

// WorkspaceResponse is the DTO for returning workspace data.
type WorkspaceResponse struct {
	ID      id.ID  `json:"id"`
	Version int    `json:"version"`
	Code    string `json:"code"`
	Name    string `json:"name"`

	ParentID *string `json:"parentId,omitempty"`
	IsFolder bool    `json:"isFolder"`

	CompanyName         string `json:"companyName"`
	AllowManualNumbers  bool   `json:"allowManualNumbers"`
	DraftPreviewEnabled bool   `json:"draftPreviewEnabled"`
	DeletionMark        bool   `json:"deletionMark"`
}

func FromWorkspace(ws *workspace.Workspace) WorkspaceResponse {
	return WorkspaceResponse{
		ID:                  ws.ID,
		Version:             ws.Version,
		Code:                ws.Code,
		Name:                ws.Name,
		ParentID:            ws.ParentID,
		IsFolder:            ws.IsFolder,
		CompanyName:         ws.CompanyName,
		AllowManualNumbers:  ws.AllowManualNumbers,
		DraftPreviewEnabled: ws.DraftPreviewEnabled,
		DeletionMark:        ws.DeletionMark,
	}
}
