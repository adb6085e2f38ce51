package buildops

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gtc/internal/model"
)

// ErrUnknownComponent is returned for a component identifier that is neither
// a project, a module nor a described unknown component.
var ErrUnknownComponent = errors.New("unknown component identifier")

// ExecuteTaskDetails describes a task execution.
type ExecuteTaskDetails struct {
	BuildPath string
	TaskPath  string
	TaskID    int64
	TaskClass string
}

// ProjectPath returns the task path without its last segment.
func (d ExecuteTaskDetails) ProjectPath() string {
	i := strings.LastIndexByte(d.TaskPath, ':')
	if i < 0 {
		return d.TaskPath
	}
	return d.TaskPath[:i]
}

// DecodeExecuteTask decodes the details of a task execution.
func DecodeExecuteTask(details model.Payload) (ExecuteTaskDetails, error) {
	f := newFields(details, "details")
	d := ExecuteTaskDetails{
		BuildPath: f.str("buildPath"),
		TaskPath:  f.str("taskPath"),
		TaskID:    f.int("taskId"),
		TaskClass: f.str("taskClass"),
	}
	return d, f.Err()
}

// ComponentIdentifier identifies the component a transform runs on.
type ComponentIdentifier interface {
	fmt.Stringer
	isComponent()
}

// ProjectComponent is a project of the current or an included build.
type ProjectComponent struct {
	BuildPath   string
	ProjectPath string
}

// ModuleComponent is an external module.
type ModuleComponent struct {
	Group   string
	Module  string
	Version string
}

// UnknownComponent is any other component, described by its display name.
type UnknownComponent struct {
	DisplayName string
	ClassName   string
}

func (ProjectComponent) isComponent() {}
func (ModuleComponent) isComponent()  {}
func (UnknownComponent) isComponent() {}

func (c ProjectComponent) String() string {
	if c.BuildPath == ":" {
		return c.ProjectPath
	}
	return c.BuildPath + c.ProjectPath
}

func (c ModuleComponent) String() string {
	return c.Group + ":" + c.Module + ":" + c.Version
}

func (c UnknownComponent) String() string {
	return c.DisplayName + " (" + c.ClassName + ")"
}

// DecodeComponent decodes a component identifier from its fields.
func DecodeComponent(p model.Payload) (ComponentIdentifier, error) {
	get := func(key string) (string, bool) {
		s, ok := p.String(key)
		return s, ok
	}
	if buildPath, ok := get("buildPath"); ok {
		if projectPath, ok := get("projectPath"); ok {
			return ProjectComponent{BuildPath: buildPath, ProjectPath: projectPath}, nil
		}
	}
	group, hasGroup := get("group")
	module, hasModule := get("module")
	version, hasVersion := get("version")
	if hasGroup && hasModule && hasVersion {
		return ModuleComponent{Group: group, Module: module, Version: version}, nil
	}
	displayName, hasName := get("displayName")
	className, hasClass := get("className")
	if hasName && hasClass {
		return UnknownComponent{DisplayName: displayName, ClassName: className}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownComponent, model.Stringify(map[string]any(p)))
}

// Capability is a capability provided by a component variant.
type Capability struct {
	Group   string
	Name    string
	Version string
}

func (c Capability) String() string {
	if c.Version == "" {
		return c.Group + ":" + c.Name
	}
	return c.Group + ":" + c.Name + ":" + c.Version
}

// ComponentVariant identifies the variant of a component a transform
// produces.
type ComponentVariant struct {
	Component    ComponentIdentifier
	Attributes   map[string]string
	Capabilities []Capability
}

func decodeVariant(f fields) (ComponentVariant, error) {
	componentFields := f.obj("componentId")
	v := ComponentVariant{
		Attributes: f.stringMap("attributes"),
	}
	for i, raw := range f.list("capabilities") {
		capFields := newFields(nil, fmt.Sprintf("%s.capabilities[%d]", f.path, i))
		if p, ok := model.ToPayload(raw); ok {
			capFields = newFields(p, capFields.path)
		}
		c := Capability{
			Group: capFields.str("group"),
			Name:  capFields.str("name"),
		}
		c.Version, _ = capFields.optStr("version")
		if err := capFields.Err(); err != nil {
			return v, err
		}
		v.Capabilities = append(v.Capabilities, c)
	}
	if err := f.Err(); err != nil {
		return v, err
	}
	component, err := DecodeComponent(componentFields.payload)
	if err != nil {
		return v, err
	}
	v.Component = component
	return v, nil
}

// ConfigurationIdentity identifies the configuration that resolved the
// dependencies of a transformed artifact.
type ConfigurationIdentity struct {
	BuildPath   string
	ProjectPath string
	Name        string
}

// TransformationIdentity identifies a scheduled transformation step.
type TransformationIdentity struct {
	BuildPath                 string
	ProjectPath               string
	TargetVariant             ComponentVariant
	ArtifactName              string
	DependenciesConfiguration *ConfigurationIdentity
	TransformationNodeID      int64
}

func decodeTransformationIdentity(f fields) (TransformationIdentity, error) {
	id := TransformationIdentity{
		BuildPath:            f.str("buildPath"),
		ProjectPath:          f.str("projectPath"),
		ArtifactName:         f.str("artifactName"),
		TransformationNodeID: f.int("transformationNodeId"),
	}
	if conf, ok := f.optObj("dependenciesConfigurationIdentity"); ok {
		id.DependenciesConfiguration = &ConfigurationIdentity{
			BuildPath:   conf.str("buildPath"),
			ProjectPath: conf.str("projectPath"),
			Name:        conf.str("name"),
		}
	}
	variant := f.obj("targetVariant")
	if err := f.Err(); err != nil {
		return id, err
	}
	var err error
	id.TargetVariant, err = decodeVariant(variant)
	return id, err
}

// TransformationStepDetails describes the execution of a scheduled
// transformation step.
type TransformationStepDetails struct {
	Identity         TransformationIdentity
	SourceAttributes map[string]string
	TransformType    string
	FromAttributes   map[string]string
	ToAttributes     map[string]string
}

// DecodeTransformationStep decodes the details of a transformation step.
func DecodeTransformationStep(details model.Payload) (TransformationStepDetails, error) {
	f := newFields(details, "details")
	d := TransformationStepDetails{
		SourceAttributes: f.stringMap("sourceAttributes"),
		TransformType:    f.str("transformType"),
		FromAttributes:   f.stringMap("fromAttributes"),
		ToAttributes:     f.stringMap("toAttributes"),
	}
	identity := f.obj("transformationIdentity")
	if err := f.Err(); err != nil {
		return d, err
	}
	var err error
	d.Identity, err = decodeTransformationIdentity(identity)
	return d, err
}

// Description names the transformed component followed by the attributes
// the step changes.
func (d TransformationStepDetails) Description() string {
	return d.Identity.TargetVariant.Component.String() + DescribeAttributeChanges(d.FromAttributes, d.ToAttributes)
}

// DescribeAttributeChanges renders every attribute of to whose value differs
// from from, sorted by name, as " name(old->new)" or " name(new)".
func DescribeAttributeChanges(from, to map[string]string) string {
	var b strings.Builder
	for _, name := range sortedKeys(to) {
		toValue := to[name]
		fromValue, ok := from[name]
		if ok && fromValue == toValue {
			continue
		}
		b.WriteString(" ")
		b.WriteString(name)
		b.WriteString("(")
		if ok {
			b.WriteString(fromValue)
			b.WriteString("->")
		}
		b.WriteString(toValue)
		b.WriteString(")")
	}
	return b.String()
}

// Attribute is one named attribute value.
type Attribute struct {
	Name  string
	Value string
}

// IdentifyTransformDetails describes the identification of transform work.
type IdentifyTransformDetails struct {
	WorkType       string
	ComponentID    string
	FromAttributes []Attribute
	ToAttributes   []Attribute
}

// DecodeIdentifyTransform decodes the details of a transform identification.
// The component id may be given as a string or as identifier fields.
func DecodeIdentifyTransform(details model.Payload) (IdentifyTransformDetails, error) {
	f := newFields(details, "details")
	d := IdentifyTransformDetails{
		WorkType: f.str("workType"),
	}
	if err := f.Err(); err != nil {
		return d, err
	}

	switch raw := details["componentId"].(type) {
	case string:
		d.ComponentID = raw
	default:
		p, ok := model.ToPayload(raw)
		if !ok {
			return d, fmt.Errorf("%w: details.componentId is not a string or an object", ErrInvalidDetails)
		}
		component, err := DecodeComponent(p)
		if err != nil {
			return d, err
		}
		d.ComponentID = component.String()
	}

	var err error
	if d.FromAttributes, err = decodeAttributeList(f, "fromAttributes"); err != nil {
		return d, err
	}
	if d.ToAttributes, err = decodeAttributeList(f, "toAttributes"); err != nil {
		return d, err
	}
	return d, nil
}

func decodeAttributeList(f fields, key string) ([]Attribute, error) {
	raw := f.list(key)
	if err := f.Err(); err != nil {
		return nil, err
	}
	attrs := make([]Attribute, 0, len(raw))
	for i, item := range raw {
		p, ok := model.ToPayload(item)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s[%d] is not an object", ErrInvalidDetails, f.path, key, i)
		}
		name, ok := p.String("name")
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s[%d].name is not a string", ErrInvalidDetails, f.path, key, i)
		}
		attrs = append(attrs, Attribute{Name: name, Value: model.Stringify(p["value"])})
	}
	return attrs, nil
}

// DecodeIdentity returns the unique id stored under identity.uniqueId of a
// payload. It reads the result of an identification and the details of a
// work execution.
func DecodeIdentity(p model.Payload) (string, error) {
	f := newFields(p, "payload")
	id := f.obj("identity").str("uniqueId")
	return id, f.Err()
}

// ExecuteWorkDetails describes the execution of a unit of work.
type ExecuteWorkDetails struct {
	WorkType string
	Identity string
}

// DecodeExecuteWork decodes the work type of an execute-work operation and,
// for transform executions, the identity of the executed work.
func DecodeExecuteWork(details model.Payload) (ExecuteWorkDetails, error) {
	f := newFields(details, "details")
	d := ExecuteWorkDetails{WorkType: f.str("workType")}
	if err := f.Err(); err != nil || !IsTransformExecution(d.WorkType) {
		return d, err
	}
	var err error
	d.Identity, err = DecodeIdentity(details)
	return d, err
}

// FormatAttributeList renders attributes as {k=v,k=v} sorted by name.
func FormatAttributeList(attrs []Attribute) string {
	sorted := append([]Attribute(nil), attrs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var b strings.Builder
	b.WriteString("{")
	for i, a := range sorted {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(a.Name)
		b.WriteString("=")
		b.WriteString(a.Value)
	}
	b.WriteString("}")
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
