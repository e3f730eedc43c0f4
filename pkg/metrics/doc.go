/*
Package metrics defines Burrow's Prometheus collectors.

Collectors are package-level and registered once in init. The publish
pipeline, dispatcher, consumer registry, projections, and API middleware
update them at the point of change; Handler serves them for scraping.
*/
package metrics
