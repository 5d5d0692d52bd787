// Copyright 2026 github.com/DervexDev/racky
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package web

import (
	"fmt"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/DervexDev/racky/internal/util"
)

const gigabyte = 1024.0 * 1024.0 * 1024.0

// cpuSampleWindow is how long CPU load is averaged over per request.
const cpuSampleWindow = 200 * time.Millisecond

// writeSystemReport appends host-wide metrics to a server status reply.
// Every probe is best-effort: an unreadable source renders as N/A or an
// empty section instead of failing the endpoint.
func writeSystemReport(b *strings.Builder) {
	b.WriteString("System:\n")

	osVersion := "N/A"
	bootTime := "N/A"
	var uptime time.Duration
	if info, err := host.Info(); err == nil {
		if v := strings.TrimSpace(info.Platform + " " + info.PlatformVersion); v != "" {
			osVersion = v
		}
		if info.BootTime != 0 {
			bootTime = util.Timestamp(time.Unix(int64(info.BootTime), 0))
		}
		uptime = time.Duration(info.Uptime) * time.Second
	}
	fmt.Fprintf(b, "  Version: %s\n", osVersion)
	fmt.Fprintf(b, "  Uptime: %s\n", util.FormatDuration(uptime))
	fmt.Fprintf(b, "  Boot Time: %s\n", bootTime)

	pids, _ := process.Pids()
	fmt.Fprintf(b, "  Processes: %d\n\n", len(pids))

	writeCPUSection(b)
	writeMemorySection(b)
	writeDiskSection(b)
	writeTemperatureSection(b)
}

func writeCPUSection(b *strings.Builder) {
	b.WriteString("  CPU Load:\n")

	loads, _ := cpu.Percent(cpuSampleWindow, true)
	infos, _ := cpu.Info()

	// Some platforms report one info entry for the whole package.
	freq := func(i int) float64 {
		switch {
		case i < len(infos):
			return infos[i].Mhz / 1000.0
		case len(infos) > 0:
			return infos[0].Mhz / 1000.0
		default:
			return 0
		}
	}

	var totalLoad, totalFreq float64
	for i, load := range loads {
		fmt.Fprintf(b, "    cpu%d: %.2f%% (%.2f GHz)\n", i, load, freq(i))
		totalLoad += load
		totalFreq += freq(i)
	}
	if n := float64(len(loads)); n > 0 {
		fmt.Fprintf(b, "    Total: %.2f%% (%.2f GHz)\n", totalLoad/n, totalFreq/n)
	}
	b.WriteString("\n")
}

func writeMemorySection(b *strings.Builder) {
	b.WriteString("  RAM Usage:\n")
	if vm, err := mem.VirtualMemory(); err == nil {
		fmt.Fprintf(b, "    Memory: %.2f / %.2f GB\n", float64(vm.Used)/gigabyte, float64(vm.Total)/gigabyte)
	}
	if swap, err := mem.SwapMemory(); err == nil {
		fmt.Fprintf(b, "    Swap: %.2f / %.2f GB\n", float64(swap.Used)/gigabyte, float64(swap.Total)/gigabyte)
	}
	b.WriteString("\n")
}

func writeDiskSection(b *strings.Builder) {
	b.WriteString("  Disk Usage:\n")

	partitions, _ := disk.Partitions(false)
	var used, total uint64
	for _, partition := range partitions {
		usage, err := disk.Usage(partition.Mountpoint)
		if err != nil {
			continue
		}
		fmt.Fprintf(b, "    %s: %.2f / %.2f GB\n",
			partition.Device, float64(usage.Used)/gigabyte, float64(usage.Total)/gigabyte)
		used += usage.Used
		total += usage.Total
	}
	fmt.Fprintf(b, "    Total: %.2f / %.2f GB\n\n", float64(used)/gigabyte, float64(total)/gigabyte)
}

func writeTemperatureSection(b *strings.Builder) {
	b.WriteString("  Temperatures:\n")

	sensors, _ := host.SensorsTemperatures()
	for _, sensor := range sensors {
		fmt.Fprintf(b, "    %s: %.2f °C\n", sensor.SensorKey, sensor.Temperature)
	}
	b.WriteString("\n")
}
