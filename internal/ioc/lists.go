package ioc

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// List 一组 IOC 标识
// Exact 命中即告警；Implicit 只进入时间线参与启发式关联
type List struct {
	Exact    []string `yaml:"exact"`
	Implicit []string `yaml:"implicit"`
}

// Lists 按工件族划分的 IOC 列表
type Lists struct {
	Process  List `yaml:"process"`
	Location List `yaml:"location"`
}

// DefaultLists 内置的 Operation Triangulation 指标
func DefaultLists() Lists {
	return Lists{
		Process: List{
			Exact: []string{"BackupAgent"},
			Implicit: []string{
				"nehelper",
				"com.apple.WebKit.WebContent",
				"powerd/com.apple.datausage.diagnostics",
				"lockdownd/com.apple.datausage.security",
			},
		},
		Location: List{
			Implicit: []string{
				"com.apple.locationd.bundle-/System/Library/LocationBundles/IonosphereHarvest.bundle",
				"com.apple.locationd.bundle-/System/Library/LocationBundles/WRMLinkSelection.bundle",
			},
		},
	}
}

// LoadLists 从 YAML 文件加载 IOC 列表，文件中未出现的段沿用默认值
func LoadLists(path string) (Lists, error) {
	lists := DefaultLists()

	data, err := os.ReadFile(path)
	if err != nil {
		return lists, fmt.Errorf("error reading ioc file: %w", err)
	}

	if err := yaml.Unmarshal(data, &lists); err != nil {
		return lists, fmt.Errorf("error parsing ioc YAML: %w", err)
	}

	if len(lists.Process.Exact)+len(lists.Process.Implicit)+
		len(lists.Location.Exact)+len(lists.Location.Implicit) == 0 {
		return lists, fmt.Errorf("ioc file %s defines no identifiers", path)
	}
	return lists, nil
}

// Classify 判定标识属于哪一级
func (l List) Classify(identifier string) Verdict {
	if slices.Contains(l.Exact, identifier) {
		return VerdictExact
	}
	if slices.Contains(l.Implicit, identifier) {
		return VerdictImplicit
	}
	return VerdictIgnored
}
