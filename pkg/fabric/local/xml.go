package local

import "encoding/xml"

// domainXML 本驱动需要的最小 domain 定义
// 参考 https://libvirt.org/formatdomain.html
type domainXML struct {
	XMLName xml.Name `xml:"domain"`
	Type    string   `xml:"type,attr"`

	Name string `xml:"name"`
	UUID string `xml:"uuid,omitempty"`
	// Title 存放 flavor id，重启进程后仍能还原 server 规格
	Title string `xml:"title,omitempty"`

	Memory        domainMemory `xml:"memory"`
	CurrentMemory domainMemory `xml:"currentMemory"`
	VCPU          domainVCPU   `xml:"vcpu"`

	OS domainOS `xml:"os"`

	OnPoweroff string `xml:"on_poweroff,omitempty"`
	OnReboot   string `xml:"on_reboot,omitempty"`
	OnCrash    string `xml:"on_crash,omitempty"`

	Devices domainDevices `xml:"devices"`
}

type domainMemory struct {
	Unit  string `xml:"unit,attr"`
	Value uint64 `xml:",chardata"`
}

type domainVCPU struct {
	Placement string `xml:"placement,attr"`
	Value     int    `xml:",chardata"`
}

type domainOS struct {
	Type domainOSType `xml:"type"`
	Boot domainBoot   `xml:"boot"`
}

type domainOSType struct {
	Arch  string `xml:"arch,attr"`
	Value string `xml:",chardata"`
}

type domainBoot struct {
	Dev string `xml:"dev,attr"`
}

type domainDevices struct {
	Disks      []domainDisk     `xml:"disk"`
	Interfaces []domainIface    `xml:"interface"`
	Serials    []domainSerial   `xml:"serial"`
	Consoles   []domainConsole  `xml:"console"`
	Graphics   []domainGraphics `xml:"graphics"`
}

type domainDisk struct {
	Type   string           `xml:"type,attr"`
	Device string           `xml:"device,attr"`
	Driver domainDiskDriver `xml:"driver"`
	Source domainDiskSource `xml:"source"`
	Target domainDiskTarget `xml:"target"`
	// ReadOnly 用于 cloud-init ISO
	ReadOnly *struct{} `xml:"readonly,omitempty"`
}

type domainDiskDriver struct {
	Name string `xml:"name,attr"`
	Type string `xml:"type,attr"`
}

type domainDiskSource struct {
	File string `xml:"file,attr,omitempty"`
}

type domainDiskTarget struct {
	Dev string `xml:"dev,attr"`
	Bus string `xml:"bus,attr"`
}

type domainIface struct {
	Type   string            `xml:"type,attr"`
	Source domainIfaceSource `xml:"source"`
	Model  domainIfaceModel  `xml:"model"`
	MAC    *domainIfaceMAC   `xml:"mac,omitempty"`
}

type domainIfaceSource struct {
	Bridge  string `xml:"bridge,attr,omitempty"`
	Network string `xml:"network,attr,omitempty"`
}

type domainIfaceModel struct {
	Type string `xml:"type,attr"`
}

type domainIfaceMAC struct {
	Address string `xml:"address,attr"`
}

type domainSerial struct {
	Type string `xml:"type,attr"`
}

type domainConsole struct {
	Type string `xml:"type,attr"`
}

type domainGraphics struct {
	Type     string `xml:"type,attr"`
	AutoPort string `xml:"autoport,attr,omitempty"`
}

// volumeXML 存储卷定义
type volumeXML struct {
	XMLName    xml.Name         `xml:"volume"`
	Type       string           `xml:"type,attr"`
	Name       string           `xml:"name"`
	Capacity   volumeSize       `xml:"capacity"`
	Allocation volumeSize       `xml:"allocation"`
	Target     volumeTarget     `xml:"target"`
	Backing    *volumeBackingEl `xml:"backingStore,omitempty"`
}

type volumeSize struct {
	Unit  string `xml:"unit,attr"`
	Value uint64 `xml:",chardata"`
}

type volumeTarget struct {
	Format volumeFormat `xml:"format"`
}

type volumeFormat struct {
	Type string `xml:"type,attr"`
}

type volumeBackingEl struct {
	Path   string       `xml:"path"`
	Format volumeFormat `xml:"format"`
}
