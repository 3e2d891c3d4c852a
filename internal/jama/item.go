package jama

import (
	"strconv"
	"strings"

	"github.com/temirov/rmtree/internal/traverse"
)

const (
	// AttributeGlobalID holds the item's global id.
	AttributeGlobalID = "globalId"
	// AttributeProject holds the numeric project id.
	AttributeProject = "project"
	// AttributeResourceType holds the REST resource type, "items" for regular items.
	AttributeResourceType = "resourceType"

	resourceTypeItems = "items"
	fieldName         = "name"
	fieldProjectKey   = "projectKey"
)

type pageInfo struct {
	StartIndex   int `json:"startIndex"`
	ResultCount  int `json:"resultCount"`
	TotalResults int `json:"totalResults"`
}

type responseMeta struct {
	Status   string    `json:"status"`
	PageInfo *pageInfo `json:"pageInfo"`
}

type itemLocation struct {
	Parent struct {
		Item    *int64 `json:"item"`
		Project *int64 `json:"project"`
	} `json:"parent"`
}

// Item is the subset of a Jama item the traversal needs.
type Item struct {
	ID            int64                  `json:"id"`
	DocumentKey   string                 `json:"documentKey"`
	GlobalID      string                 `json:"globalId"`
	ItemType      int                    `json:"itemType"`
	ChildItemType *int                   `json:"childItemType"`
	Project       int64                  `json:"project"`
	Type          string                 `json:"type"`
	Fields        map[string]interface{} `json:"fields"`
	Location      itemLocation           `json:"location"`
}

// Name returns the item's name field.
func (item Item) Name() string {
	if value, ok := item.Fields[fieldName].(string); ok {
		return value
	}
	return ""
}

// Descriptor converts the item into a traversal node descriptor.
func (item Item) Descriptor() traverse.NodeDescriptor {
	descriptor := traverse.NodeDescriptor{
		Ref:        itemRef(item.ID),
		Type:       strconv.Itoa(item.ItemType),
		Name:       item.Name(),
		Key:        item.DocumentKey,
		Attributes: map[string]string{},
	}
	if item.ChildItemType != nil {
		descriptor.ChildType = strconv.Itoa(*item.ChildItemType)
		descriptor.HasChildren = true
	}
	if item.Location.Parent.Item != nil {
		descriptor.Parent = itemRef(*item.Location.Parent.Item)
	}
	if item.GlobalID != "" {
		descriptor.Attributes[AttributeGlobalID] = item.GlobalID
	}
	if item.Project != 0 {
		descriptor.Attributes[AttributeProject] = strconv.FormatInt(item.Project, 10)
	}
	if item.Type != "" {
		descriptor.Attributes[AttributeResourceType] = item.Type
	}
	return descriptor
}

// Project is the subset of a Jama project used to resolve project keys.
type Project struct {
	ID     int64                  `json:"id"`
	Fields map[string]interface{} `json:"fields"`
}

// Key returns the project's projectKey field.
func (project Project) Key() string {
	if value, ok := project.Fields[fieldProjectKey].(string); ok {
		return value
	}
	return ""
}

// Name returns the project's name field.
func (project Project) Name() string {
	if value, ok := project.Fields[fieldName].(string); ok {
		return value
	}
	return ""
}

type tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func itemRef(id int64) traverse.NodeRef {
	return traverse.NodeRef(strconv.FormatInt(id, 10))
}

func parseItemID(ref traverse.NodeRef) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(string(ref)), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidItemID
	}
	return id, nil
}
